package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Confirmation links are signed JWTs so the waiting-for-confirmation state
// cannot be short-circuited by guessing URLs.

const confirmPurpose = "submission-confirm"

type confirmClaims struct {
	SubmissionID int    `json:"submission_id"`
	Purpose      string `json:"purpose"`
	jwt.RegisteredClaims
}

func confirmSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

// ConfirmationToken signs a confirmation link token for a submission.
func ConfirmationToken(submissionID int, validFor time.Duration) (string, error) {
	if validFor <= 0 {
		validFor = 7 * 24 * time.Hour
	}
	claims := confirmClaims{
		SubmissionID: submissionID,
		Purpose:      confirmPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validFor)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(confirmSecret())
}

// ParseConfirmationToken verifies a confirmation token and returns the
// submission it belongs to.
func ParseConfirmationToken(tokenString string) (int, error) {
	token, err := jwt.ParseWithClaims(tokenString, &confirmClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return confirmSecret(), nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid or expired confirmation token")
	}
	claims, ok := token.Claims.(*confirmClaims)
	if !ok || claims.Purpose != confirmPurpose || claims.SubmissionID == 0 {
		return 0, errors.New("invalid confirmation token claims")
	}
	return claims.SubmissionID, nil
}
