package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	postgresRepo "github.com/iho/tableledger/internal/adapter/repository/postgres"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/auth"
	"github.com/iho/tableledger/internal/infrastructure/config"
	"github.com/iho/tableledger/internal/infrastructure/logger"
	"github.com/iho/tableledger/internal/infrastructure/postgres"
)

var (
	baseURL string
	timeout time.Duration
	token   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tableledger-cli",
		Short:         "TableLedger CLI tool",
		Long:          `A command line interface for operating the TableLedger API and database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the TableLedger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("TABLELEDGER_TOKEN"), "Bearer token for the API")

	rootCmd.AddCommand(
		ledgerCmd(),
		accountsCmd(),
		rulesCmd(),
		boundaryCmd(),
		balancesCmd(),
		migrateCmd(),
		membersCmd(),
		periodsCmd(),
		tokenCmd(),
	)

	return rootCmd
}

// API commands

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "ledger", Short: "Ledger operations"}

	var restaurantID string
	consistency := &cobra.Command{
		Use:   "consistency",
		Short: "Check that the restaurant's debits equal its credits",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			status, err := newAPIClient().do(cmd.Context(), http.MethodGet,
				"/api/v1/ledger/consistency?restaurant_id="+restaurantID, nil, &result)
			if err != nil && status != http.StatusConflict {
				return err
			}

			out := cmd.OutOrStdout()
			if status == http.StatusConflict {
				fmt.Fprintf(out, "Consistency check FAILED: %v\n", result["message"])
				return errors.New("ledger is inconsistent")
			}
			fmt.Fprintln(out, "Consistency check PASSED")
			return nil
		},
	}
	requireRestaurant(consistency, &restaurantID)

	cmd.AddCommand(consistency)
	return cmd
}

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "accounts", Short: "Chart of accounts"}

	var restaurantID string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create the default chart of accounts for a restaurant",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListAccountsResponse
			if _, err := newAPIClient().do(cmd.Context(), http.MethodPost, "/api/v1/accounts/seed",
				dto.SeedChartRequest{RestaurantID: restaurantID}, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d accounts\n", resp.Total)
			return nil
		},
	}
	requireRestaurant(seed, &restaurantID)

	cmd.AddCommand(seed)
	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rules", Short: "Categorization rule engine"}

	var (
		restaurantID string
		limit        int
		drain        bool
	)

	evaluate := &cobra.Command{
		Use:   "evaluate",
		Short: "Record the best matching rule on unevaluated events",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.EvaluateResponse
			if _, err := newAPIClient().do(cmd.Context(), http.MethodPost, "/api/v1/rules/evaluate",
				dto.RuleBatchRequest{RestaurantID: restaurantID, Limit: limit}, &resp); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	requireRestaurant(evaluate, &restaurantID)
	evaluate.Flags().IntVar(&limit, "limit", 100, "Events per batch")

	apply := &cobra.Command{
		Use:   "apply",
		Short: "Categorize events whose matched rule auto-applies",
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := applyRules(cmd.Context(), newAPIClient(), restaurantID, limit, drain)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), total)
			return nil
		},
	}
	requireRestaurant(apply, &restaurantID)
	apply.Flags().IntVar(&limit, "limit", 100, "Events per batch")
	apply.Flags().BoolVar(&drain, "all", false, "Keep running batches until the queue is empty")

	cmd.AddCommand(evaluate, apply)
	return cmd
}

// applyRules runs auto-apply batches. With drain set it repeats while a
// batch came back full and made progress.
func applyRules(ctx context.Context, c *apiClient, restaurantID string, limit int, drain bool) (dto.BatchResultResponse, error) {
	var total dto.BatchResultResponse
	for {
		var batch dto.BatchResultResponse
		if _, err := c.do(ctx, http.MethodPost, "/api/v1/rules/apply",
			dto.RuleBatchRequest{RestaurantID: restaurantID, Limit: limit}, &batch); err != nil {
			return total, err
		}

		total.Applied += batch.Applied
		total.Skipped += batch.Skipped
		total.Failed += batch.Failed
		total.Total += batch.Total

		if !drain || batch.Total < limit || batch.Applied+batch.Skipped == 0 {
			return total, nil
		}
	}
}

func boundaryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "boundary", Short: "Reconciliation boundary"}

	var restaurantID string
	check := &cobra.Command{
		Use:   "check",
		Short: "Report posted activity before the balance start date",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ViolationResponse
			if _, err := newAPIClient().do(cmd.Context(), http.MethodGet,
				"/api/v1/restaurants/"+restaurantID+"/boundary/check", nil, &resp); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	requireRestaurant(check, &restaurantID)

	adjust := &cobra.Command{
		Use:   "adjust",
		Short: "Move the boundary back over pre-boundary activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.AdjustmentResponse
			if _, err := newAPIClient().do(cmd.Context(), http.MethodPost,
				"/api/v1/restaurants/"+restaurantID+"/boundary/adjust", nil, &resp); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp)
			if resp.RebuildError != "" {
				return fmt.Errorf("adjustment committed but balance rebuild failed: %s", resp.RebuildError)
			}
			return nil
		},
	}
	requireRestaurant(adjust, &restaurantID)

	cmd.AddCommand(check, adjust)
	return cmd
}

func balancesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "balances", Short: "Cached account balances"}

	var restaurantID string
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute cached balances from journal lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.RebuildResponse
			if _, err := newAPIClient().do(cmd.Context(), http.MethodPost,
				"/api/v1/restaurants/"+restaurantID+"/balances/rebuild", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recomputed %d accounts, %d changed\n", resp.Recomputed, resp.Changed)
			return nil
		},
	}
	requireRestaurant(rebuild, &restaurantID)

	cmd.AddCommand(rebuild)
	return cmd
}

// Database commands

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Database migrations"}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				return postgres.RunMigrations(cliLogger(cfg), cfg.DatabaseURL, cfg.MigrationsPath)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				return postgres.RunMigrationsDown(cliLogger(cfg), cfg.DatabaseURL, cfg.MigrationsPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				version, dirty, err := postgres.MigrationVersion(cfg.DatabaseURL, cfg.MigrationsPath)
				if err != nil {
					return err
				}
				if dirty {
					fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", version)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", version)
				return nil
			},
		},
	)

	return cmd
}

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "members", Short: "Restaurant membership"}

	var restaurantID, userID, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Grant a user a role on a restaurant",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}

			return withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
				if err := postgresRepo.NewMembershipAuthorizer(pool).AddMember(cmd.Context(), restaurantID, userID, r); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s of %s\n", userID, r, restaurantID)
				return nil
			})
		},
	}
	requireRestaurant(add, &restaurantID)
	add.Flags().StringVar(&userID, "user", "", "User ID")
	add.Flags().StringVar(&role, "role", string(domain.RoleStaff), "owner, manager, accountant or staff")
	_ = add.MarkFlagRequired("user")

	cmd.AddCommand(add)
	return cmd
}

func periodsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "periods", Short: "Fiscal periods"}

	var restaurantID, start, end string
	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Close a fiscal period so its events can no longer change",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parsePeriod(start, end)
			if err != nil {
				return err
			}

			return withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
				id := postgresRepo.NewULIDGenerator().Generate()
				if err := postgresRepo.NewFiscalCalendar(pool).ClosePeriod(cmd.Context(), id, restaurantID, from, to, time.Now().UTC()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Closed %s to %s for %s\n", start, end, restaurantID)
				return nil
			})
		},
	}
	requireRestaurant(closeCmd, &restaurantID)
	closeCmd.Flags().StringVar(&start, "start", "", "First day of the period (YYYY-MM-DD)")
	closeCmd.Flags().StringVar(&end, "end", "", "Last day of the period (YYYY-MM-DD)")
	_ = closeCmd.MarkFlagRequired("start")
	_ = closeCmd.MarkFlagRequired("end")

	cmd.AddCommand(closeCmd)
	return cmd
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	from, err := dto.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	to, err := dto.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is before start %s", end, start)
	}
	return from, to, nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "API tokens"}

	var (
		userID  string
		email   string
		service bool
		secret  string
		ttl     time.Duration
	)

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for a user or service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret = cfg.JWTSecret
			}
			if secret == "" {
				return errors.New("no signing secret: set JWT_SECRET or --secret")
			}

			signed, err := auth.NewJWTManager(secret, ttl).Generate(domain.Principal{
				UserID:  userID,
				Email:   email,
				Service: service,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "User ID")
	issue.Flags().StringVar(&email, "email", "", "User email")
	issue.Flags().BoolVar(&service, "service", false, "Issue a service token")
	issue.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET)")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

// helpers

func requireRestaurant(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "restaurant", "", "Restaurant ID")
	_ = cmd.MarkFlagRequired("restaurant")
}

func withPool(ctx context.Context, fn func(pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 2, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pool)
}

func cliLogger(cfg *config.Config) zerolog.Logger {
	return logger.NewWithWriter(logger.Config{Level: cfg.LogLevel, Format: "console"}, os.Stderr)
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient() *apiClient {
	return &apiClient{baseURL: baseURL, token: token, http: &http.Client{Timeout: timeout}}
}

// do sends a JSON request and decodes the response into out. Non-2xx
// responses return an error carrying the server's message; out is still
// decoded so callers can inspect structured failures.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		var apiErr dto.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return resp.StatusCode, fmt.Errorf("%s (status %d, kind %s): %s", apiErr.Error, resp.StatusCode, apiErr.Kind, apiErr.Message)
		}
		return resp.StatusCode, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
