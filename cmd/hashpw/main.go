package main // Generates the bcrypt hash for ADMIN_PASSWORD_HASH

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/parking-reservation-bot/internal/utils"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(2)
	}
	hash, err := utils.HashPassword(os.Args[1], bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash failed:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
