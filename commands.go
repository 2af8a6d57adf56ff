package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/msomdec/postbook/internal/domain"
	"github.com/msomdec/postbook/internal/service"
)

const usage = `usage: postbook <command> [flags]

commands:
  migrate    apply schema migrations and exit
  register   create an account and profile
  login      sign in and print an access and refresh token
  refresh    exchange a refresh token for a new pair
  logout     revoke a refresh token
  post       create a post as the holder of an access token
  posts      list the posts of the holder of an access token
  comment    comment on a post as the holder of an access token
`

// run dispatches one command and returns the process exit code. Every core
// operation's Result is printed to out as JSON.
func run(ctx context.Context, a *app, args []string, out io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "migrate":
		// newApp has already applied them.
		return printResult(out, domain.Success(true))
	case "register":
		return runRegister(ctx, a, rest, out)
	case "login":
		return runLogin(ctx, a, rest, out)
	case "refresh":
		return runRefresh(ctx, a, rest, out)
	case "logout":
		return runLogout(ctx, a, rest, out)
	case "post":
		return runPost(ctx, a, rest, out)
	case "posts":
		return runPosts(ctx, a, rest, out)
	case "comment":
		return runComment(ctx, a, rest, out)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func runRegister(ctx context.Context, a *app, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	in := service.RegisterInput{}
	fs.StringVar(&in.Username, "username", "", "user name (3-50 letters or digits)")
	fs.StringVar(&in.Email, "email", "", "email address")
	fs.StringVar(&in.Password, "password", "", "password")
	fs.StringVar(&in.FirstName, "first-name", "", "first name")
	fs.StringVar(&in.LastName, "last-name", "", "last name")
	fs.StringVar(&in.Address, "address", "", "street address")
	fs.StringVar(&in.City, "city", "", "city")
	fs.StringVar(&in.Gender, "gender", "", "Male or Female")
	dob := fs.String("dob", "", "date of birth (YYYY-MM-DD)")
	avatarPath := fs.String("avatar", "", "path to an avatar image")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *dob != "" {
		parsed, err := time.Parse(time.DateOnly, *dob)
		if err != nil {
			return printResult(out, domain.Failure[service.TokenPair](
				domain.NewError(domain.InvalidInput, "date of birth must be YYYY-MM-DD").WithDetails(*dob)))
		}
		in.DateOfBirth = parsed
	}

	if *avatarPath != "" {
		f, err := os.Open(*avatarPath)
		if err != nil {
			return printResult(out, domain.Failure[service.TokenPair](
				domain.NewError(domain.InvalidInput, "cannot open avatar").WithDetails(err.Error())))
		}
		defer f.Close()
		in.Avatar, in.AvatarFileName = f, filepath.Base(*avatarPath)
	}

	return printResult(out, a.auth.Register(ctx, in))
}

func runLogin(ctx context.Context, a *app, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "user name")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return printResult(out, a.auth.Login(ctx, *username, *password))
}

func runRefresh(ctx context.Context, a *app, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	token := fs.String("token", "", "refresh token")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return printResult(out, a.auth.Refresh(ctx, *token))
}

func runLogout(ctx context.Context, a *app, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	token := fs.String("token", "", "refresh token")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return printResult(out, a.auth.Logout(ctx, *token))
}

func runPost(ctx context.Context, a *app, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	token := fs.String("token", "", "access token")
	title := fs.String("title", "", "post title")
	body := fs.String("body", "", "post body")
	imagePath := fs.String("image", "", "path to an image")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	caller := a.caller(*token)
	if caller.IsError() {
		return printResult(out, caller)
	}

	var image *service.ImageUpload
	if *imagePath != "" {
		f, err := os.Open(*imagePath)
		if err != nil {
			return printResult(out, domain.Failure[domain.Post](
				domain.NewError(domain.InvalidInput, "cannot open image").WithDetails(err.Error())))
		}
		defer f.Close()
		image = &service.ImageUpload{Reader: f, FileName: filepath.Base(*imagePath)}
	}

	return printResult(out, a.posts.Create(ctx, caller.Value(), *title, *body, image))
}

func runPosts(ctx context.Context, a *app, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("posts", flag.ContinueOnError)
	token := fs.String("token", "", "access token")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 10, "page size (1-100)")
	sort := fs.String("sort", string(domain.SortByCreatedAt), "CreatedAt, UpdatedAt or PostTitle")
	dir := fs.String("dir", string(domain.SortDescending), "ASC or DESC")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	caller := a.caller(*token)
	if caller.IsError() {
		return printResult(out, caller)
	}
	return printResult(out, a.posts.ListByUser(ctx, caller.Value(), domain.PageRequest{
		PageNumber:    *page,
		PageSize:      *size,
		SortColumn:    domain.SortColumn(*sort),
		SortDirection: domain.SortDirection(strings.ToUpper(*dir)),
	}))
}

func runComment(ctx context.Context, a *app, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("comment", flag.ContinueOnError)
	token := fs.String("token", "", "access token")
	postID := fs.String("post", "", "post id")
	body := fs.String("body", "", "comment text")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	caller := a.caller(*token)
	if caller.IsError() {
		return printResult(out, caller)
	}
	post := domain.ParseIdentifier(*postID)
	if post.IsError() {
		return printResult(out, post)
	}
	return printResult(out, a.comments.Create(ctx, caller.Value(), post.Value(), *body))
}

// caller resolves the profile an access token was issued for.
func (a *app) caller(token string) domain.Result[domain.Identifier] {
	claims, err := a.tokens.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return domain.Failure[domain.Identifier](domain.NewError(domain.Unauthorized, "invalid or expired access token"))
		}
		return domain.Failure[domain.Identifier](domain.NewError(domain.Unknown, err.Error()))
	}
	return domain.ParseIdentifier(claims.ProfileID)
}

func printResult[T any](out io.Writer, r domain.Result[T]) int {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		return 1
	}
	if r.IsError() {
		return 1
	}
	return 0
}
