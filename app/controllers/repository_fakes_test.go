package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

// withFakeRepositories serves the handlers under test against fake
// repositories instead of the GORM-backed global factory.
func withFakeRepositories(t *testing.T, repos *repository.Repositories) {
	t.Helper()
	restore := repository.SetGlobalFactory(repository.NewFactoryWithRepositories(repos))
	t.Cleanup(restore)
}

// newHandlerTestApp builds a Fiber app; a non-nil user context is installed
// the way the user context middleware would.
func newHandlerTestApp(userCtx *usercontext.UserContext) *fiber.App {
	app := fiber.New()
	if userCtx != nil {
		uc := *userCtx
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("USER_CONTEXT", uc)
			return c.Next()
		})
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

// fakeCatalogRepository backs the catalog and moderation handlers. Only the
// methods the handlers under test reach are implemented; anything else fails
// loudly through the embedded nil interface.
type fakeCatalogRepository struct {
	repository.ModelRepository

	rows         []models.Model
	statusWrites []string
}

func (f *fakeCatalogRepository) GetApproved(freeOnly bool, offset, limit int) ([]models.Model, error) {
	out := make([]models.Model, 0, len(f.rows))
	for _, m := range f.rows {
		if m.Status != models.MODEL_STATUS_APPROVED {
			continue
		}
		if freeOnly && !m.IsFree {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeCatalogRepository) Search(query string) ([]models.Model, error) {
	out := make([]models.Model, 0, len(f.rows))
	for _, m := range f.rows {
		if strings.Contains(strings.ToLower(m.Title), strings.ToLower(query)) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeCatalogRepository) GetByID(id uint) (*models.Model, error) {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalogRepository) GetByUUID(uuid string) (*models.Model, error) {
	for i := range f.rows {
		if f.rows[i].UUID == uuid {
			return &f.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalogRepository) GetBySlug(slug string) (*models.Model, error) {
	for i := range f.rows {
		if f.rows[i].Slug == slug {
			return &f.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalogRepository) GetPending(offset, limit int) ([]models.Model, error) {
	out := make([]models.Model, 0, len(f.rows))
	for _, m := range f.rows {
		if m.Status == models.MODEL_STATUS_PENDING {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeCatalogRepository) CountByStatus(status string) (int64, error) {
	var n int64
	for _, m := range f.rows {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeCatalogRepository) Update(m *models.Model) error {
	f.statusWrites = append(f.statusWrites, m.UUID+":"+m.Status)
	for i := range f.rows {
		if f.rows[i].ID == m.ID {
			f.rows[i] = *m
		}
	}
	return nil
}

// fakeForumRepository backs the community handlers.
type fakeForumRepository struct {
	repository.PostRepository

	posts    []models.Post
	comments []models.PostComment
	nextID   uint
}

func (f *fakeForumRepository) Create(post *models.Post) error {
	f.nextID++
	post.ID = f.nextID
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakeForumRepository) GetBySlug(slug string) (*models.Post, error) {
	for i := range f.posts {
		if f.posts[i].Slug == slug {
			return &f.posts[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeForumRepository) List(offset, limit int) ([]models.Post, error) {
	return f.posts, nil
}

func (f *fakeForumRepository) Count() (int64, error) {
	return int64(len(f.posts)), nil
}

func (f *fakeForumRepository) SlugExists(slug string) (bool, error) {
	for _, p := range f.posts {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeForumRepository) AddComment(comment *models.PostComment) error {
	f.nextID++
	comment.ID = f.nextID
	f.comments = append(f.comments, *comment)
	return nil
}

func (f *fakeForumRepository) GetComments(postID uint, offset, limit int) ([]models.PostComment, error) {
	out := make([]models.PostComment, 0, len(f.comments))
	for _, cm := range f.comments {
		if cm.PostID == postID {
			out = append(out, cm)
		}
	}
	return out, nil
}

// fakeCollectionRepository backs the collection handlers.
type fakeCollectionRepository struct {
	repository.CollectionRepository

	collections []models.Collection
	members     map[uint][]uint
	nextID      uint
}

func newFakeCollectionRepository() *fakeCollectionRepository {
	return &fakeCollectionRepository{members: make(map[uint][]uint)}
}

func (f *fakeCollectionRepository) Create(collection *models.Collection) error {
	f.nextID++
	collection.ID = f.nextID
	f.collections = append(f.collections, *collection)
	return nil
}

func (f *fakeCollectionRepository) GetByID(id uint) (*models.Collection, error) {
	for i := range f.collections {
		if f.collections[i].ID == id {
			return &f.collections[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCollectionRepository) GetByUserID(userID uint) ([]models.Collection, error) {
	out := make([]models.Collection, 0, len(f.collections))
	for _, col := range f.collections {
		if col.UserID == userID {
			out = append(out, col)
		}
	}
	return out, nil
}

func (f *fakeCollectionRepository) Update(collection *models.Collection) error {
	for i := range f.collections {
		if f.collections[i].ID == collection.ID {
			f.collections[i] = *collection
		}
	}
	return nil
}

func (f *fakeCollectionRepository) Delete(id uint) error {
	kept := f.collections[:0]
	for _, col := range f.collections {
		if col.ID != id {
			kept = append(kept, col)
		}
	}
	f.collections = kept
	delete(f.members, id)
	return nil
}

func (f *fakeCollectionRepository) AddModel(collectionID, modelID uint) error {
	for _, id := range f.members[collectionID] {
		if id == modelID {
			return nil
		}
	}
	f.members[collectionID] = append(f.members[collectionID], modelID)
	return nil
}

func (f *fakeCollectionRepository) RemoveModel(collectionID, modelID uint) error {
	kept := f.members[collectionID][:0]
	for _, id := range f.members[collectionID] {
		if id != modelID {
			kept = append(kept, id)
		}
	}
	f.members[collectionID] = kept
	return nil
}

// fakeAccountRepository backs the admin user-management handlers.
type fakeAccountRepository struct {
	repository.UserRepository

	users        []models.User
	statusWrites []string
}

func (f *fakeAccountRepository) GetByID(id uint) (*models.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAccountRepository) Update(user *models.User) error {
	f.statusWrites = append(f.statusWrites, fmt.Sprintf("%d:%s", user.ID, user.Status))
	for i := range f.users {
		if f.users[i].ID == user.ID {
			f.users[i] = *user
		}
	}
	return nil
}
