package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/database"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/env"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/hcaptcha"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/mail"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/session"
)

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates an inactive account and mails the activation link.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed request body")
	}

	if env.GetEnv("HCAPTCHA_SECRET", "") != "" {
		ok, err := hcaptcha.Verify(req.CaptchaToken)
		if err != nil || !ok {
			return jsonError(c, fiber.StatusBadRequest, "captcha_failed", "Captcha verification failed")
		}
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()

	if _, err := userRepo.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email))); err == nil {
		return jsonError(c, fiber.StatusConflict, "email_taken", "An account with this email already exists")
	}
	if _, err := userRepo.GetByUsername(strings.TrimSpace(req.Username)); err == nil {
		return jsonError(c, fiber.StatusConflict, "username_taken", "This username is already taken")
	}

	user, err := models.CreateUser(strings.TrimSpace(req.Username), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := user.GenerateActivationToken(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create account")
	}

	if err := userRepo.Create(user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create account")
	}

	go sendActivationMail(user)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"status":   user.Status,
	})
}

func sendActivationMail(user *models.User) {
	domain := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/")
	link := fmt.Sprintf("%s/activate?token=%s", domain, user.ActivationToken)
	body := fmt.Sprintf("Hi %s,\n\nplease confirm your account:\n%s\n\nThe link is valid for 48 hours.", user.Username, link)
	if err := mail.SendMail(user.Email, "Activate your account", body); err != nil {
		log.Errorf("[Auth] Failed to send activation mail to user %d: %v", user.ID, err)
	}
}

// HandleAuthActivate flips an account to active when the token matches.
func HandleAuthActivate(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Missing activation token")
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByActivationToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "invalid_token", "Activation token is invalid or already used")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to activate account")
	}

	if user.ActivationSentAt != nil && time.Since(*user.ActivationSentAt) > 48*time.Hour {
		return jsonError(c, fiber.StatusGone, "token_expired", "Activation token has expired, please register again")
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	if err := userRepo.Update(user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to activate account")
	}

	return c.JSON(fiber.Map{"status": user.Status})
}

// HandleAuthLogin verifies credentials and opens a session.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed request body")
	}

	// Deliberately vague on failures so the endpoint does not leak which
	// part of the credentials was wrong.
	var user models.User
	result := database.GetDB().Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user)
	if result.Error != nil {
		return jsonError(c, fiber.StatusUnauthorized, "login_failed", "There is a problem with the login process")
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "login_failed", "There is a problem with the login process")
	}

	if user.Status == models.STATUS_INACTIVE {
		return jsonError(c, fiber.StatusForbidden, "account_inactive", "Please activate your account first")
	}
	if user.Status == models.STATUS_DISABLED {
		return jsonError(c, fiber.StatusForbidden, "account_disabled", "This account has been disabled")
	}

	if err := startUserSession(c, &user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to open session")
	}

	database.GetDB().Model(&user).Update("last_login_at", time.Now())
	log.Infof("[Auth] User %d logged in from %s", user.ID, GetClientIP(c))

	return c.JSON(fiber.Map{
		"id":           user.ID,
		"username":     user.Username,
		"is_admin":     user.Role == models.ROLE_ADMIN,
		"subscription": user.SubscriptionStatus,
	})
}

func startUserSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Username)
	sess.Set(USER_IS_ADMIN, user.Role == models.ROLE_ADMIN)

	return sess.Save()
}

// HandleAuthLogout destroys the current session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if derr := sess.Destroy(); derr != nil {
			log.Errorf("[Auth] Failed to destroy session: %v", derr)
		}
	}

	c.Locals(FROM_PROTECTED, false)

	return c.JSON(fiber.Map{"logged_out": true})
}
