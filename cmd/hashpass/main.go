// Command hashpass prints the argon2id hash to store in admins.password.
//
//	hashpass -password 's3cret'
//	echo 's3cret' | hashpass
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/septivank/sensor-telemetry-api/internal/auth"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "hashpass:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("hashpass", flag.ContinueOnError)
	password := fs.String("password", "", "password to hash (read from stdin when empty)")
	verify := fs.String("verify", "", "existing hash to check the password against instead of hashing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}
	if *password == "" {
		return errors.New("empty password")
	}

	if *verify != "" {
		ok, err := auth.VerifyPassword(*password, *verify)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("password does not match")
		}
		_, err = fmt.Fprintln(stdout, "match")
		return err
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}
