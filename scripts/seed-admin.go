// Package main is a development utility for seeding a usable admin account in a
// local database. It generates a random password with its bcrypt hash pre-computed
// and prints a ready-to-run SQL INSERT statement, plus a fresh value suitable for
// CHR_JWT_SECRET. Do not use generated credentials in production.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	passwordBytes := make([]byte, 18)
	if _, err := rand.Read(passwordBytes); err != nil {
		log.Fatal(err)
	}
	password := base64.RawURLEncoding.EncodeToString(passwordBytes)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		log.Fatal(err)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		log.Fatal(err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	fmt.Println("==========================================================")
	fmt.Println("Dev Admin Account")
	fmt.Println("==========================================================")
	fmt.Printf("\nEmail:    admin@dev.local\n")
	fmt.Printf("Password: %s\n", password)
	fmt.Println("\n==========================================================")
	fmt.Println("SQL:")
	fmt.Println("==========================================================")
	fmt.Printf(`
INSERT INTO tbl_accounts (email, password, position)
VALUES ('admin@dev.local', '%s', 'Admin')
ON CONFLICT (email) DO UPDATE SET password = EXCLUDED.password;
`, string(hashBytes))
	fmt.Println("\n==========================================================")
	fmt.Printf("export CHR_JWT_SECRET=%s\n", secret)
	fmt.Println("==========================================================")
}
