package models

import "time"

// Users (employers and job seekers)
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	UserID       string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name         string `gorm:"type:varchar(255);not null"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	Role         string `gorm:"type:varchar(20);not null;default:'seeker'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string {
	return "users"
}

// Job postings
type Job struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	JobID       string `gorm:"type:varchar(100);uniqueIndex;not null"`
	EmployerID  string `gorm:"type:varchar(100);index;not null"`
	Title       string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	Location    string `gorm:"type:varchar(255)"`
	SalaryMin   uint   `gorm:"not null;default:0"`
	SalaryMax   uint   `gorm:"not null;default:0"`
	Status      string `gorm:"type:varchar(20);not null;default:'open';index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Job) TableName() string {
	return "jobs"
}

// Applications
type Application struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	JobID       string `gorm:"type:varchar(100);index:idx_job_applicant;not null"`
	ApplicantID string `gorm:"type:varchar(100);index:idx_job_applicant;not null"`
	CoverLetter string `gorm:"type:text"`
	Status      string `gorm:"type:varchar(20);not null;default:'submitted'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Application) TableName() string {
	return "applications"
}

// Bookmarks
type Bookmark struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"type:varchar(100);uniqueIndex:idx_user_job;not null"`
	JobID     string `gorm:"type:varchar(100);uniqueIndex:idx_user_job;not null"`
	CreatedAt time.Time
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

// JWT Blacklist
type JWTBlacklist struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Token     string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

func (JWTBlacklist) TableName() string {
	return "jwt_blacklist"
}
