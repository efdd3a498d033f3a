package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/service"
	"golang.org/x/term"
)

// Prints a bcrypt hash for the password_hash field of a dev authority
// fixture.
func main() {
	cfg := config.Load()

	var cost int
	flag.IntVar(&cost, "cost", cfg.BcryptCost, "bcrypt cost")
	flag.Parse()

	fmt.Fprint(os.Stderr, "Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading password")
		os.Exit(1)
	}
	password := string(bytePassword)
	if len(password) < 6 {
		fmt.Fprintln(os.Stderr, "Error: Password must be at least 6 characters")
		os.Exit(1)
	}

	hash, err := service.HashPassword(password, cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
