// Command devtoken mints an HS256 JWT for exercising the protected
// verification endpoints (resend, status) during development.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	secret := flag.String("secret", "very-secure-jwt-secret", "Secret key for signing the token")
	accountID := flag.Int64("account", 1, "Account id to embed in the token")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	flag.Parse()

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"account_id": *accountID,
		"iat":        now.Unix(),
		"exp":        now.Add(*expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(tokenStr)
}
