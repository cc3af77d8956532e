package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fish-not-phish/pixurebyte/internal/apiclient"
	"github.com/fish-not-phish/pixurebyte/internal/config"
	"github.com/fish-not-phish/pixurebyte/internal/logging"
	"github.com/fish-not-phish/pixurebyte/internal/metrics"
	"github.com/fish-not-phish/pixurebyte/internal/schema"
	"github.com/fish-not-phish/pixurebyte/internal/store"
)

// app carries the dependencies shared by commands.
type app struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	session *store.FileSession
	client  *apiclient.Client
	user    *store.UserStore
	teams   *store.TeamStore
}

func newApp() (*app, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, err
	}
	session, err := store.OpenSession(cfg.SessionPath)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	client := apiclient.New(apiclient.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Metrics:   m,
		Logger:    log,
	}, session)

	teams := &store.TeamStore{}
	if id := session.ActiveTeam(); id != "" {
		teams.SetActive(id)
	}
	return &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		session: session,
		client:  client,
		user:    &store.UserStore{},
		teams:   teams,
	}, nil
}

// currentUser returns the cached user, asking the API only on a miss.
func (a *app) currentUser(ctx context.Context) (schema.CurrentUser, error) {
	if u, ok := a.user.Get(); ok {
		return u, nil
	}
	u, err := a.client.Me(ctx)
	if err != nil {
		return u, err
	}
	a.user.Set(u)
	return u, nil
}

// teamID resolves the team a command acts on: --team first, then the
// persisted selection.
func (a *app) teamID() (string, error) {
	if id := viper.GetString("team"); id != "" {
		return parseID("team", id)
	}
	if id := a.session.ActiveTeam(); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: pass --team or run `pixure teams use <id>`", store.ErrNoActiveTeam)
}

// parseID checks that s is a UUID and returns it in canonical form.
func parseID(kind, s string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid %s id %q: %w", kind, s, err)
	}
	return id.String(), nil
}

// readSecret prompts for a value without echo when stdin is a terminal and
// reads a single line otherwise.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(cmd.InOrStdin())
}

// readLine reads up to and including the next newline one byte at a time so
// that consecutive prompts can share a reader.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF {
			if sb.Len() == 0 {
				return "", fmt.Errorf("read input: %w", err)
			}
			break
		}
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}
