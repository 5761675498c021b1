package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/farmtech/livestock-auth/internal/model"
	"github.com/farmtech/livestock-auth/internal/service"
)

type adminCreator interface {
	CreateAdmin(ctx context.Context, in service.RegisterInput) (*model.User, error)
}

// createAdmin bootstraps the first ADMIN identity. Identity fields come
// from flags; the password is read from the first line of stdin so it never
// lands in shell history.
func createAdmin(ctx context.Context, sessions adminCreator, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(stdout)
	in := service.RegisterInput{}
	fs.StringVar(&in.Username, "username", "", "admin username")
	fs.StringVar(&in.Email, "email", "", "admin email")
	fs.StringVar(&in.FirstName, "first-name", "", "first name")
	fs.StringVar(&in.LastName, "last-name", "", "last name")
	fs.StringVar(&in.Phone, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprint(stdout, "password: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	in.Password = strings.TrimRight(line, "\r\n")

	u, err := sessions.CreateAdmin(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\ncreated admin %s (id=%d)\n", u.Username, u.ID)
	return nil
}
