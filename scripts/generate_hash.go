//go:build ignore

// generate_hash prints the argon2id hash of a password for ADMIN_PASSWORD_HASH.
//
//	go run scripts/generate_hash.go <password>
package main

import (
	"fmt"
	"os"

	"stakehub/internal/features/users"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/generate_hash.go <password>")
		os.Exit(1)
	}

	hash, err := users.HashPassword(os.Args[1])
	if err != nil {
		fmt.Printf("Hashing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Password hash (put it in .env as ADMIN_PASSWORD_HASH):")
	fmt.Println(hash)
}
