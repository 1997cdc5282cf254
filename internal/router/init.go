package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/container"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
	gcsinfra "github.com/oksasatya/go-expense-split/internal/infrastructure/gcs"
	"github.com/oksasatya/go-expense-split/internal/infrastructure/memory"
	"github.com/oksasatya/go-expense-split/internal/infrastructure/notify"
	pginfra "github.com/oksasatya/go-expense-split/internal/infrastructure/postgres"
	"github.com/oksasatya/go-expense-split/internal/infrastructure/redisstore"
	"github.com/oksasatya/go-expense-split/internal/infrastructure/search"
	handlers "github.com/oksasatya/go-expense-split/internal/interface/http"
	"github.com/oksasatya/go-expense-split/internal/router/modules"
	"github.com/oksasatya/go-expense-split/pkg/response"
)

type repos struct {
	Users       repository.UserRepository
	Groups      repository.GroupRepository
	Categories  repository.CategoryRepository
	Expenses    repository.ExpenseRepository
	Settlements repository.SettlementRepository
	Tx          repository.Transactor
}

// buildRepos uses Postgres when a pool is registered and the in-memory store otherwise.
func buildRepos() repos {
	if pool := container.GetPGPool(); pool != nil {
		return repos{
			Users:       pginfra.NewUserRepository(pool),
			Groups:      pginfra.NewGroupRepository(pool),
			Categories:  pginfra.NewCategoryRepository(pool),
			Expenses:    pginfra.NewExpenseRepository(pool),
			Settlements: pginfra.NewSettlementRepository(pool),
			Tx:          pginfra.NewTransactor(pool),
		}
	}
	store := container.GetMemoryStore()
	if store == nil {
		store = memory.NewStore()
		container.SetMemoryStore(store)
	}
	return repos{
		Users:       store.Users(),
		Groups:      store.Groups(),
		Categories:  store.Categories(),
		Expenses:    store.Expenses(),
		Settlements: store.Settlements(),
		Tx:          store,
	}
}

type credentialStores struct {
	Sessions    application.SessionStore
	ResetTokens application.ResetTokenStore
}

func buildCredentialStores() credentialStores {
	if rdb := container.GetRedis(); rdb != nil {
		return credentialStores{
			Sessions:    redisstore.NewSessionStore(rdb),
			ResetTokens: redisstore.NewResetTokenStore(rdb),
		}
	}
	s := memory.NewSessionStore()
	return credentialStores{Sessions: s, ResetTokens: s}
}

// Optional collaborators are returned as untyped nil interfaces when their
// backing client is missing.

func buildNotifier() application.Notifier {
	// Left as an untyped nil without a broker so the notifier's nil check sees it.
	var pub notify.Publisher
	if rp := container.GetRabbitPub(); rp != nil {
		pub = rp
	}
	return notify.NewQueueNotifier(pub, container.GetConfig(), container.GetLogger())
}

func buildReceiptStore() application.ReceiptStore {
	client, cfg := container.GetGCS(), container.GetConfig()
	if client == nil || cfg.GCSBucket == "" {
		return nil
	}
	return gcsinfra.NewReceiptStore(client, cfg.GCSBucket)
}

func buildUserIndex() application.UserIndex {
	es := container.GetES()
	if es == nil {
		return nil
	}
	return search.NewUserIndex(es, container.GetConfig().ESUsersIndex)
}

func storageMode() string {
	if container.GetPGPool() != nil {
		return "postgres"
	}
	return "memory"
}

// InitModules wires every feature module from the container singletons and
// adds it to the registry. Call once at startup, after the container is populated.
func InitModules(r *Registry) {
	cfg, logger, jwt := container.GetConfig(), container.GetLogger(), container.GetJWT()
	rp := buildRepos()
	cs := buildCredentialStores()

	identity := application.NewIdentityService(rp.Users, cs.Sessions, cs.ResetTokens, buildNotifier(), buildUserIndex(), jwt, cfg, logger)
	groups := application.NewGroupService(rp.Groups, rp.Users, rp.Expenses, rp.Categories, rp.Tx, logger)
	expenses := application.NewExpenseService(rp.Groups, rp.Categories, rp.Expenses, rp.Settlements, rp.Tx, buildReceiptStore(), logger)
	auth := application.NewAuthenticator(rp.Users, cs.Sessions, jwt)

	r.Add(modules.NewAuthModule(handlers.NewAuthHandler(identity, logger, cfg.CookieDomain, cfg.CookieSecure), auth))
	r.Add(modules.NewGroupModule(handlers.NewGroupHandler(groups, logger), auth))
	r.Add(modules.NewExpenseModule(handlers.NewExpenseHandler(expenses, logger), auth))
	r.Add(modules.NewUserModule(handlers.NewUserHandler(identity, logger), auth))
	r.Add(ModuleFunc(func(rg *gin.RouterGroup) {
		rg.GET("/health", func(c *gin.Context) {
			response.Success(c, http.StatusOK, gin.H{"storage": storageMode()}, "ok", nil)
		})
	}))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(container.GetRedis(), cfg.DebugRateLimit))
	}
}
