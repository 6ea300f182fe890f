package models

const (
	RoleDriver     = "driver"
	RoleSupervisor = "supervisor"
)

type User struct {
	ID                string  `json:"id" db:"id"`
	Email             string  `json:"email" db:"email"`
	Password          string  `json:"-" db:"password"` // Never return password in JSON
	Name              string  `json:"name" db:"name"`
	Role              string  `json:"role" db:"role"` // "driver" or "supervisor"
	AssignedVehicleID *string `json:"assigned_vehicle_id,omitempty" db:"assigned_vehicle_id"`
	CreatedAt         int64   `json:"created_at" db:"created_at"`
	UpdatedAt         int64   `json:"updated_at" db:"updated_at"`
}

type UserResponse struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	Name              string  `json:"name"`
	Role              string  `json:"role"`
	AssignedVehicleID *string `json:"assigned_vehicle_id,omitempty"`
	CreatedAt         int64   `json:"created_at"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		Role:              u.Role,
		AssignedVehicleID: u.AssignedVehicleID,
		CreatedAt:         u.CreatedAt,
	}
}

// LoginRequest is the body for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
