package cli

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/homegate/homegate/internal/auth"
)

// runHashPassword prints a bcrypt hash suitable for users.json and
// secrets.json. The password is read from --password, a stdin pipe, or
// an interactive prompt, in that order.
func runHashPassword(args []string) int {
	fs := flag.NewFlagSet("hashpw", flag.ContinueOnError)
	password := fs.String("password", "", "Password to hash (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, "hashpw command error:", err)
		return 2
	}

	pw := *password
	if pw == "" {
		var err error
		pw, err = readPassword()
		if err != nil {
			fmt.Fprintln(os.Stderr, "hashpw command error:", err)
			return 1
		}
	}
	if pw == "" {
		fmt.Fprintln(os.Stderr, "hashpw command error: empty password")
		return 2
	}

	hash, err := auth.HashPassword(pw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpw command error:", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}

func readPassword() (string, error) {
	if isInteractiveInput() {
		fmt.Fprint(os.Stderr, "Password: ")
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isInteractiveInput() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
