package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	REACTION_LIKE   = "likes"
	REACTION_USEFUL = "useful"
	REACTION_FIRE   = "fire"
)

// PostReaction is one user's reaction of one type on a post. The unique index
// keeps toggling race-safe: a double insert fails instead of double counting.
type PostReaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index:ux_post_reactions_post_user_type,unique,priority:1" json:"post_id"`
	UserID    uint      `gorm:"not null;index:ux_post_reactions_post_user_type,unique,priority:2" json:"user_id"`
	Type      string    `gorm:"type:varchar(20);not null;index:ux_post_reactions_post_user_type,unique,priority:3" json:"type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// IsValidReactionType reports whether t names a known reaction.
func IsValidReactionType(t string) bool {
	switch t {
	case REACTION_LIKE, REACTION_USEFUL, REACTION_FIRE:
		return true
	default:
		return false
	}
}

// ToggleReaction creates or removes a reaction and adjusts the denormalized
// counter on the post row in the same transaction.
func ToggleReaction(db *gorm.DB, postID, userID uint, reactionType string) (added bool, err error) {
	counterColumn := reactionType + "_count"

	err = db.Transaction(func(tx *gorm.DB) error {
		var reaction PostReaction
		result := tx.Where("post_id = ? AND user_id = ? AND type = ?", postID, userID, reactionType).First(&reaction)

		if result.Error != nil {
			if result.Error != gorm.ErrRecordNotFound {
				return result.Error
			}
			newReaction := PostReaction{
				PostID: postID,
				UserID: userID,
				Type:   reactionType,
			}
			if err := tx.Create(&newReaction).Error; err != nil {
				return err
			}
			added = true
			return tx.Model(&Post{}).Where("id = ?", postID).
				UpdateColumn(counterColumn, gorm.Expr(counterColumn+" + 1")).Error
		}

		if err := tx.Delete(&reaction).Error; err != nil {
			return err
		}
		added = false
		return tx.Model(&Post{}).Where("id = ? AND "+counterColumn+" > 0", postID).
			UpdateColumn(counterColumn, gorm.Expr(counterColumn+" - 1")).Error
	})
	return added, err
}
