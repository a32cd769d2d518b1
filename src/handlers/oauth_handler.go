package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/username/zynbudget/backend/src/config"
	"github.com/username/zynbudget/backend/src/database"
	"github.com/username/zynbudget/backend/src/logger"
	"github.com/username/zynbudget/backend/src/model"
)

var googleOauthConfig *oauth2.Config

func InitializeGoogleOAuthConfig() {
	googleOauthConfig = &oauth2.Config{
		RedirectURL:  config.Cfg.GoogleRedirectURL,
		ClientID:     config.Cfg.GoogleClientID,
		ClientSecret: config.Cfg.GoogleClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	url := googleOauthConfig.AuthCodeURL(config.Cfg.OAuthStateString)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	redirectError := func(code string) {
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error="+code, http.StatusTemporaryRedirect)
	}

	if r.FormValue("state") != config.Cfg.OAuthStateString {
		logger.L.Warn("invalid OAuth state from Google callback")
		redirectError("invalid_state")
		return
	}

	token, err := googleOauthConfig.Exchange(context.Background(), r.FormValue("code"))
	if err != nil {
		logger.L.Error("failed to exchange OAuth code", "error", err)
		redirectError("token_exchange_failed")
		return
	}

	response, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + token.AccessToken)
	if err != nil {
		logger.L.Error("failed to fetch Google user info", "error", err)
		redirectError("userinfo_failed")
		return
	}
	defer response.Body.Close()
	contents, err := io.ReadAll(response.Body)
	if err != nil {
		redirectError("userinfo_read_failed")
		return
	}

	var googleUser struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Verified bool   `json:"verified_email"`
	}
	if err := json.Unmarshal(contents, &googleUser); err != nil {
		redirectError("userinfo_parse_failed")
		return
	}
	if !googleUser.Verified {
		redirectError("email_not_verified_by_google")
		return
	}

	user, err := model.GetUserByEmail(database.DB, googleUser.Email)
	if err != nil {
		newUser := &model.User{
			Username:        googleUser.Email,
			Email:           googleUser.Email,
			AuthProvider:    "google",
			IsEmailVerified: true,
		}
		if err := newUser.CreateUser(database.DB); err != nil {
			logger.L.Error("failed to create Google user", "error", err)
			redirectError("user_creation_failed")
			return
		}
		user = newUser
	} else if user.AuthProvider == "local" || user.Password != "" {
		// An existing password account cannot be taken over via OAuth.
		logger.L.Warn("Google login attempt for existing local account", "userID", user.ID)
		redirectError("email_already_exists_local")
		return
	}

	h.issueSession(w, r, user)
}
