package account

import "time"

// UserView is the public representation of a user.
type UserView struct {
	ID           int     `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	GradeLevel   int     `json:"grade_level"`
	ReadingLevel float64 `json:"reading_level"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Message     string   `json:"message,omitempty"`
	AccessToken string   `json:"access_token"`
	User        UserView `json:"user"`
}

// ProfileUpdate is returned by UpdateProfile.
type ProfileUpdate struct {
	Message string   `json:"message"`
	User    UserView `json:"user"`
}

// Statistics summarizes a user's reading activity. AverageScore is a
// percentage rounded to two decimals.
type Statistics struct {
	TotalSessions     int      `json:"total_sessions"`
	CompletedSessions int      `json:"completed_sessions"`
	TotalQuestions    int      `json:"total_questions"`
	AverageScore      *float64 `json:"average_score"`
}

// AdminUser is a user in the admin listing.
type AdminUser struct {
	UserView
	CreatedAt  time.Time  `json:"created_at"`
	Statistics Statistics `json:"statistics"`
}

// UserList is the admin listing of all users.
type UserList struct {
	TotalUsers int         `json:"total_users"`
	Users      []AdminUser `json:"users"`
}
