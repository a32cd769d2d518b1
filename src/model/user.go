package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"-"`
	AuthProvider string `json:"auth_provider,omitempty"`

	// Profile
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	AvatarPath  string `json:"avatar_path,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Currency    string `json:"currency"`
	Timezone    string `json:"timezone"`

	// Verification and premium state
	IsEmailVerified                 bool      `json:"is_email_verified"`
	EmailVerificationToken          string    `json:"-"`
	EmailVerificationTokenExpiresAt time.Time `json:"-"`
	PasswordResetToken              string    `json:"-"`
	PasswordResetTokenExpiresAt     time.Time `json:"-"`
	IsPremium                       bool      `json:"is_premium"`
	PremiumExpiresAt                time.Time `json:"premium_expires_at,omitzero"`
	MfaEnabled                      bool      `json:"mfa_enabled"`
	MfaSecret                       string    `json:"-"`

	// Audit
	LoginCount  int       `json:"login_count"`
	LastLoginAt NullTime  `json:"last_login_at"`
	LastLoginIP string    `json:"last_login_ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsAdmin     bool      `json:"is_admin"`
}

// NullTime is an alias for sql.NullTime for better JSON handling.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}

// FullName returns "first last" trimmed, falling back to the username when
// both name fields are empty.
func (u *User) FullName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

// IsPremiumActive evaluates the premium subscription against the supplied
// wall-clock time. The result is time-dependent and must never be cached:
// false when the flag is unset, true for a non-expiring subscription, and
// otherwise true exactly while now < expiry.
func (u *User) IsPremiumActive(now time.Time) bool {
	if !u.IsPremium {
		return false
	}
	if u.PremiumExpiresAt.IsZero() {
		return true
	}
	return now.Before(u.PremiumExpiresAt)
}

// profileFields returns the fixed, ordered attribute set that counts toward
// profile completion. Every caller of ProfileCompletion shares this list.
func (u *User) profileFields() []string {
	return []string{
		u.FirstName,
		u.LastName,
		u.Email,
		u.PhoneNumber,
		u.AvatarPath,
		u.DateOfBirth,
		u.Bio,
	}
}

// ProfileCompletion returns the filled-field percentage in [0,100] rounded
// to 2 decimal places. This is the single implementation; the profile and
// stats endpoints must not recompute it with their own field lists.
func (u *User) ProfileCompletion() decimal.Decimal {
	fields := u.profileFields()
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	return decimal.NewFromInt(int64(filled)).
		Div(decimal.NewFromInt(int64(len(fields)))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

func (u *User) HashPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) CreateUser(db *sql.DB) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.AuthProvider == "" {
		u.AuthProvider = "local"
	}
	if u.Currency == "" {
		u.Currency = "USD"
	}
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}

	query := `
	INSERT INTO users (username, email, password, auth_provider, currency, timezone,
	                   is_email_verified, email_verification_token, email_verification_token_expires_at,
	                   created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var emailTokenExpiresArg interface{}
	if u.EmailVerificationTokenExpiresAt.IsZero() {
		emailTokenExpiresArg = nil
	} else {
		emailTokenExpiresArg = u.EmailVerificationTokenExpiresAt
	}

	res, err := stmt.Exec(
		u.Username,
		u.Email,
		u.Password,
		u.AuthProvider,
		u.Currency,
		u.Timezone,
		u.IsEmailVerified,
		u.EmailVerificationToken,
		emailTokenExpiresArg,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

const userColumns = `
	id, username, email, password, auth_provider,
	first_name, last_name, phone_number, avatar_path, date_of_birth, bio,
	currency, timezone,
	is_email_verified, email_verification_token, email_verification_token_expires_at,
	password_reset_token, password_reset_token_expires_at,
	is_premium, premium_expires_at,
	mfa_enabled, mfa_secret,
	login_count, last_login_at, last_login_ip,
	created_at, updated_at`

// scanUserRow maps one users row onto a User, normalizing NULLs.
func scanUserRow(row *sql.Row) (*User, error) {
	var user User
	var authProvider, firstName, lastName, phoneNumber, avatarPath, dateOfBirth, bio sql.NullString
	var verificationToken, resetToken, mfaSecret, lastLoginIP sql.NullString
	var verificationExpires, resetExpires, premiumExpires, lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &authProvider,
		&firstName, &lastName, &phoneNumber, &avatarPath, &dateOfBirth, &bio,
		&user.Currency, &user.Timezone,
		&user.IsEmailVerified, &verificationToken, &verificationExpires,
		&resetToken, &resetExpires,
		&user.IsPremium, &premiumExpires,
		&user.MfaEnabled, &mfaSecret,
		&user.LoginCount, &lastLoginAt, &lastLoginIP,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.AuthProvider = authProvider.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.PhoneNumber = phoneNumber.String
	user.AvatarPath = avatarPath.String
	user.DateOfBirth = dateOfBirth.String
	user.Bio = bio.String
	user.EmailVerificationToken = verificationToken.String
	user.EmailVerificationTokenExpiresAt = verificationExpires.Time
	user.PasswordResetToken = resetToken.String
	user.PasswordResetTokenExpiresAt = resetExpires.Time
	if premiumExpires.Valid {
		user.PremiumExpiresAt = premiumExpires.Time
	}
	user.MfaSecret = mfaSecret.String
	user.LastLoginAt = NullTime(lastLoginAt)
	user.LastLoginIP = lastLoginIP.String

	return &user, nil
}

func GetUserByID(db *sql.DB, id int64) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUserRow(row)
}

func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUserRow(row)
}

func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUserRow(row)
}

func GetUserByVerificationToken(db *sql.DB, token string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email_verification_token = ?`, token)
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("invalid or expired verification token")
		}
		return nil, err
	}
	return user, nil
}

func GetUserByPasswordResetToken(db *sql.DB, token string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE password_reset_token = ? AND password_reset_token_expires_at > ?`,
		token, time.Now())
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("invalid or expired password reset token")
		}
		return nil, err
	}
	return user, nil
}

func (u *User) UpdateUserVerificationStatus(db *sql.DB, isVerified bool) error {
	u.IsEmailVerified = isVerified
	u.EmailVerificationToken = ""
	u.EmailVerificationTokenExpiresAt = time.Time{}
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`
	UPDATE users
	SET is_email_verified = ?, email_verification_token = NULL, email_verification_token_expires_at = NULL, updated_at = ?
	WHERE id = ?`, u.IsEmailVerified, u.UpdatedAt, u.ID)
	return err
}

func (u *User) UpdateUserVerificationToken(db *sql.DB, token string, expiresAt time.Time) error {
	u.EmailVerificationToken = token
	u.EmailVerificationTokenExpiresAt = expiresAt
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`
	UPDATE users
	SET email_verification_token = ?, email_verification_token_expires_at = ?, updated_at = ?
	WHERE id = ?`, u.EmailVerificationToken, u.EmailVerificationTokenExpiresAt, u.UpdatedAt, u.ID)
	return err
}

func (u *User) SetPasswordResetToken(db *sql.DB, token string, expiresAt time.Time) error {
	u.PasswordResetToken = token
	u.PasswordResetTokenExpiresAt = expiresAt
	u.UpdatedAt = time.Now()

	if token == "" {
		_, err := db.Exec(`
		UPDATE users
		SET password_reset_token = NULL, password_reset_token_expires_at = NULL, updated_at = ?
		WHERE id = ?`, u.UpdatedAt, u.ID)
		return err
	}
	_, err := db.Exec(`
	UPDATE users
	SET password_reset_token = ?, password_reset_token_expires_at = ?, updated_at = ?
	WHERE id = ?`, u.PasswordResetToken, u.PasswordResetTokenExpiresAt, u.UpdatedAt, u.ID)
	return err
}

func (u *User) UpdatePassword(db *sql.DB, newPasswordHash string) error {
	u.Password = newPasswordHash
	u.PasswordResetToken = ""
	u.PasswordResetTokenExpiresAt = time.Time{}
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`
	UPDATE users
	SET password = ?, password_reset_token = NULL, password_reset_token_expires_at = NULL, updated_at = ?
	WHERE id = ?`, u.Password, u.UpdatedAt, u.ID)
	return err
}

// UpdateProfile persists the editable profile attributes. Email, premium
// state and verification state are deliberately not touched here.
func (u *User) UpdateProfile(db *sql.DB) error {
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`
	UPDATE users
	SET first_name = ?, last_name = ?, phone_number = ?, date_of_birth = ?, bio = ?,
	    currency = ?, timezone = ?, updated_at = ?
	WHERE id = ?`,
		u.FirstName, u.LastName, u.PhoneNumber, u.DateOfBirth, u.Bio,
		u.Currency, u.Timezone, u.UpdatedAt, u.ID)
	return err
}

// UpdateAvatar stores the avatar file reference; empty clears it.
func (u *User) UpdateAvatar(db *sql.DB, avatarPath string) error {
	u.AvatarPath = avatarPath
	u.UpdatedAt = time.Now()

	var arg interface{}
	if avatarPath != "" {
		arg = avatarPath
	}
	_, err := db.Exec(`UPDATE users SET avatar_path = ?, updated_at = ? WHERE id = ?`, arg, u.UpdatedAt, u.ID)
	return err
}

// UpdatePremium sets the premium flag and optional expiry. A zero expiresAt
// stores NULL, meaning a non-expiring subscription.
func (u *User) UpdatePremium(db *sql.DB, isPremium bool, expiresAt time.Time) error {
	u.IsPremium = isPremium
	u.PremiumExpiresAt = expiresAt
	u.UpdatedAt = time.Now()

	var expiresArg interface{}
	if !expiresAt.IsZero() {
		expiresArg = expiresAt
	}
	_, err := db.Exec(`UPDATE users SET is_premium = ?, premium_expires_at = ?, updated_at = ? WHERE id = ?`,
		u.IsPremium, expiresArg, u.UpdatedAt, u.ID)
	return err
}

// UpdateMFA stores the TOTP secret and flips the enabled flag. Disabling
// clears the secret.
func (u *User) UpdateMFA(db *sql.DB, enabled bool, secret string) error {
	u.MfaEnabled = enabled
	u.MfaSecret = secret
	if !enabled {
		u.MfaSecret = ""
	}
	u.UpdatedAt = time.Now()

	var secretArg interface{}
	if u.MfaSecret != "" {
		secretArg = u.MfaSecret
	}
	_, err := db.Exec(`UPDATE users SET mfa_enabled = ?, mfa_secret = ?, updated_at = ? WHERE id = ?`,
		u.MfaEnabled, secretArg, u.UpdatedAt, u.ID)
	return err
}

// RecordLogin bumps the login counter and stores the latest login metadata,
// then appends a login_history row.
func (u *User) RecordLogin(db *sql.DB, clientIP, userAgent string) error {
	now := time.Now()
	u.LoginCount++
	u.LastLoginAt = NullTime{Time: now, Valid: true}
	u.LastLoginIP = clientIP
	u.UpdatedAt = now

	_, err := db.Exec(`
	UPDATE users
	SET login_count = ?, last_login_at = ?, last_login_ip = ?, updated_at = ?
	WHERE id = ?`, u.LoginCount, now, clientIP, now, u.ID)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
	INSERT INTO login_history (user_id, ip_address, user_agent, login_at)
	VALUES (?, ?, ?, ?)`, u.ID, clientIP, userAgent, now)
	return err
}

type LoginHistoryEntry struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ClientIP   string    `json:"client_ip"`
	UserAgent  string    `json:"user_agent"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

func GetLoginHistory(db *sql.DB, userID int64, limit int) ([]LoginHistoryEntry, error) {
	rows, err := db.Query(`
	SELECT id, user_id, ip_address, user_agent, login_at
	FROM login_history
	WHERE user_id = ?
	ORDER BY login_at DESC
	LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LoginHistoryEntry
	for rows.Next() {
		var e LoginHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ClientIP, &e.UserAgent, &e.LoggedInAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type Session struct {
	ID           int       `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func CreateSession(db *sql.DB, session *Session) error {
	session.CreatedAt = time.Now()
	_, err := db.Exec(`
	INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID,
		session.Token,
		session.RefreshToken,
		session.UserAgent,
		session.ClientIP,
		session.IsBlocked,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

func scanSessionRow(row *sql.Row) (*Session, error) {
	var session Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.RefreshToken,
		&session.UserAgent,
		&session.ClientIP,
		&session.IsBlocked,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	row := db.QueryRow(`
	SELECT id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at
	FROM sessions
	WHERE token = ? AND is_blocked = FALSE AND expires_at > ?`, token, time.Now())
	session, err := scanSessionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("session not found, expired, or blocked")
		}
		return nil, err
	}
	return session, nil
}

func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	row := db.QueryRow(`
	SELECT id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at
	FROM sessions
	WHERE refresh_token = ? AND is_blocked = FALSE AND expires_at > ?`, refreshToken, time.Now())
	session, err := scanSessionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("refresh session not found, expired, or blocked")
		}
		return nil, err
	}
	return session, nil
}

func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func DeleteSessionByRefreshToken(db *sql.DB, refreshToken string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE refresh_token = ?`, refreshToken)
	return err
}

func DeleteSessionsForUser(db *sql.DB, userID int64) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}
