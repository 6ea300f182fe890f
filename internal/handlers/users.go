package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fieldops-backend/internal/database"
	"fieldops-backend/internal/middleware"
	"fieldops-backend/internal/models"
	"fieldops-backend/pkg/utils"
)

type CreateUserRequest struct {
	Email             string  `json:"email" validate:"required,email"`
	Password          string  `json:"password" validate:"required,min=8"`
	Name              string  `json:"name" validate:"required"`
	Role              string  `json:"role" validate:"required,oneof=driver supervisor"`
	AssignedVehicleID *string `json:"assigned_vehicle_id,omitempty"`
}

type CreateUserResponse struct {
	Success bool                 `json:"success"`
	User    *models.UserResponse `json:"user,omitempty"`
	Message string               `json:"message,omitempty"`
}

// CreateUser creates a driver or supervisor account. Supervisor only.
func CreateUser(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Create new user")

		var req CreateUserRequest
		if !decodeBody(w, r, &req) {
			return
		}

		log.Printf("   📧 Email: %s", req.Email)
		log.Printf("   🔑 Role: %s", req.Role)

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("❌ Failed to hash password: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		now := env.now().Unix()
		user := models.User{
			ID:                uuid.New().String(),
			Email:             req.Email,
			Password:          string(hashedPassword),
			Name:              req.Name,
			Role:              req.Role,
			AssignedVehicleID: req.AssignedVehicleID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		if err := database.InsertUser(env.DB, &user); err != nil {
			if errors.Is(err, database.ErrEmailTaken) {
				log.Printf("❌ User already exists: %s", req.Email)
				utils.RespondError(w, http.StatusConflict, "User with this email already exists")
				return
			}
			respondFailure(w, "create_user", err)
			return
		}

		log.Printf("✅ USER CREATED: %s (%s) %s", user.Email, user.Role, user.ID)

		userResponse := user.ToUserResponse()
		utils.RespondJSON(w, http.StatusCreated, CreateUserResponse{
			Success: true,
			User:    &userResponse,
			Message: "User created successfully",
		})
	}
}

// RegisterFCMToken stores the caller's device token for push notifications
func RegisterFCMToken(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, _ := middleware.GetUserFromContext(r)

		var req models.RegisterFCMTokenRequest
		if !decodeBody(w, r, &req) {
			return
		}

		now := env.now().Unix()
		token := &models.FCMToken{
			UserID:     userClaims.UserID,
			Token:      req.Token,
			DeviceType: req.DeviceType,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := database.UpsertFCMToken(env.DB, token); err != nil {
			respondFailure(w, "register_fcm_token", err)
			return
		}

		log.Printf("✅ FCM token registered for user %s", userClaims.UserID)
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "FCM token registered",
		})
	}
}
