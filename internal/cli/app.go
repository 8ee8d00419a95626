package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/BradenHooton/csm/internal/models"
)

// Exit codes returned by App.Run
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// App runs one CLI invocation: parse, log in, call the agent, print, log out
type App struct {
	Config   *Config
	Prompter Prompter
	Logger   *slog.Logger
	Stdout   io.Writer
	Stderr   io.Writer

	// Setup runs the local setup command against storage
	Setup func(ctx context.Context, cmd *Command) error
	// WriteFile saves downloaded archives
	WriteFile func(name string, data []byte) error
}

func (a *App) fail(err error) int {
	var ce *models.CsmError
	if errors.As(err, &ce) {
		fmt.Fprintln(a.Stderr, "Error: "+ce.Message)
	} else {
		fmt.Fprintln(a.Stderr, "Error: "+err.Error())
	}
	return ExitFailure
}

// Run executes args and returns the process exit code
func (a *App) Run(ctx context.Context, args []string) int {
	cmd, err := Parse(args, a.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return ExitOK
	}
	if err != nil {
		a.fail(err)
		return ExitUsage
	}

	if cmd.Local {
		if a.Setup == nil {
			return a.fail(errors.New("setup is not available"))
		}
		if err := a.Setup(ctx, cmd); err != nil {
			return a.fail(err)
		}
		return ExitOK
	}

	client := NewRestClient(a.Config.URL, a.Config.Timeout, a.Logger)
	if err := a.login(ctx, client); err != nil {
		return a.fail(err)
	}
	defer client.Logout(ctx)

	if err := a.authorize(ctx, client, cmd); err != nil {
		return a.fail(err)
	}
	if err := a.promptUserPassword(cmd); err != nil {
		return a.fail(err)
	}

	resp, err := client.Call(ctx, cmd)
	if err != nil {
		return a.fail(err)
	}

	if resp.Raw != nil {
		return a.saveDownload(resp)
	}
	if err := NewOutput(cmd, resp).Dump(a.Stdout, a.Stderr); err != nil {
		return ExitFailure
	}
	return ExitOK
}

// login uses the configured credentials, prompting for whatever is missing
func (a *App) login(ctx context.Context, client *RestClient) error {
	username, password := a.Config.Username, a.Config.Password
	var err error
	if username == "" {
		if username, err = a.Prompter.Prompt("Username"); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = a.Prompter.Password("Password"); err != nil {
			return err
		}
	}
	return client.Login(ctx, username, password)
}

func (a *App) authorize(ctx context.Context, client *RestClient, cmd *Command) error {
	perms, err := client.Permissions(ctx)
	if err != nil {
		return err
	}
	action := models.ActionWrite
	if cmd.Method() == http.MethodGet {
		action = models.ActionRead
	}
	if !perms.Allows(cmd.Resource(), action) {
		return models.Forbidden(models.KeyPermissionDenied, "You are not allowed to %s %s", cmd.Action, cmd.Name)
	}
	return nil
}

// promptUserPassword asks for the password of a new user, or a changed one
// when update runs with -p
func (a *App) promptUserPassword(cmd *Command) error {
	if cmd.Name != CmdUsers {
		return nil
	}
	if cmd.Action != "create" && !(cmd.Action == "update" && cmd.Options["change_password"] == "true") {
		return nil
	}

	password, err := a.Prompter.Password("Password for " + cmd.arg(0))
	if err != nil {
		return err
	}
	confirm, err := a.Prompter.Password("Confirm password")
	if err != nil {
		return err
	}
	if password != confirm {
		return models.InvalidRequest(models.KeyInvalidArgument, "Passwords do not match")
	}
	cmd.Options["password"] = password
	return nil
}

func (a *App) saveDownload(resp *Response) int {
	name, err := resp.AttachmentName()
	if err != nil {
		return a.fail(err)
	}
	name = filepath.Base(name)
	write := a.WriteFile
	if write == nil {
		write = func(name string, data []byte) error { return os.WriteFile(name, data, 0o600) }
	}
	if err := write(name, resp.Raw); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.Stdout, "Saved %s (%d bytes)\n", name, len(resp.Raw))
	return ExitOK
}
