// Command seed fills a backend with a demo user and random expenses.
package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"strings"
	"time"

	"smartexpense/internal/auth"
	"smartexpense/internal/cli"
	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/services"

	"github.com/bxcodec/faker/v3"
	"github.com/shopspring/decimal"
)

func main() {
	var (
		email    = flag.String("email", "demo@example.com", "email of the demo user")
		password = flag.String("password", "demo1234", "password of the demo user")
		count    = flag.Int("expenses", 60, "number of expenses to create")
		months   = flag.Int("months", 3, "spread expenses over this many months back")
	)
	flag.Parse()

	cfg, logger := cli.Bootstrap(applog.ComponentApp)

	ctx := context.Background()
	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.Cleanup(logger, "backend", result.Cleanup)

	authSvc := auth.NewService(result.Store, auth.WithCost(cfg.BcryptCost))
	user, err := authSvc.Register(ctx, auth.Registration{Name: faker.Name(), Email: *email, Password: *password})
	if core.KindOf(err) == core.KindAlreadyExists {
		user, err = authSvc.Authenticate(ctx, *email, *password)
	}
	if err != nil {
		logger.Error("Failed to prepare demo user", "error", err, "email", *email)
		os.Exit(1)
	}

	expenses := services.NewExpenseService(result.Store)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	categories := core.Categories()
	created := 0
	for i := 0; i < *count; i++ {
		in := randomExpense(rng, categories, *months)
		if _, err := expenses.Create(ctx, user.ID, in); err != nil {
			logger.Warn("Skipping expense", "error", err)
			continue
		}
		created++
	}

	logger.Info("Seed complete",
		applog.FieldUserID, user.ID,
		"email", user.Email,
		"expenses", created,
		"backend", cfg.DataBackend)
}

func randomExpense(rng *rand.Rand, categories []core.Category, months int) services.ExpenseInput {
	if months < 1 {
		months = 1
	}
	days := rng.Intn(months * 30)
	cents := 100 + rng.Int63n(15000)

	desc := strings.TrimSuffix(faker.Sentence(), ".")
	if len(desc) > core.MaxDescriptionLength {
		desc = desc[:core.MaxDescriptionLength]
	}

	return services.ExpenseInput{
		Amount:      decimal.New(cents, -2),
		Category:    categories[rng.Intn(len(categories))],
		Description: desc,
		Date:        time.Now().AddDate(0, 0, -days),
	}
}
