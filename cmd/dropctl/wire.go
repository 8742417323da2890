package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"

	"mintdrop/internal/catalog"
	"mintdrop/internal/config"
	"mintdrop/internal/drop"
	"mintdrop/internal/ledger"
	"mintdrop/internal/wallet"

	"github.com/ethereum/go-ethereum/crypto"
)

type app struct {
	cfg     *config.AppConfig
	catalog catalog.Store
	ledger  ledger.Client
	session *wallet.KeySession
	close   func()
}

func wireApp(ctx context.Context, in io.Reader, out io.Writer, autoApprove bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store catalog.Store
	if cfg.Service.CatalogDSN != "" {
		pgStore, err := catalog.NewPostgresStore(ctx, cfg.Service.CatalogDSN)
		if err != nil {
			return nil, fmt.Errorf("wire catalog: %w", err)
		}
		closers = append(closers, pgStore.Close)
		store = pgStore
	} else {
		fileStore, err := catalog.NewFileStore(cfg.Service.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("wire catalog: %w", err)
		}
		store = fileStore
	}

	key, err := loadKey(cfg.Chain)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("wire wallet: %w", err)
	}
	var approver wallet.Approver = wallet.NewPromptApprover(in, out)
	if autoApprove {
		approver = wallet.AutoApprove{}
	}
	session := wallet.NewKeySession(key, approver)

	var client ledger.Client
	if cfg.Chain.Offline() {
		client = ledger.NewFakeClient(ledger.DefaultFakeSeed(), session)
	} else {
		ethClient, err := ledger.NewEthClient(ctx, ledger.EthClientConfig{
			RPCURL:              cfg.Chain.RPCURL,
			NativeSymbol:        cfg.Chain.NativeSymbol,
			ReceiptPollInterval: cfg.Chain.ReceiptPoll,
			ChainID:             cfg.Chain.ChainID,
			Signer:              session,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("wire ledger: %w", err)
		}
		closers = append(closers, ethClient.Close)
		client = ethClient
	}

	return &app{
		cfg:     cfg,
		catalog: store,
		ledger:  client,
		session: session,
		close:   closeAll,
	}, nil
}

func loadKey(chain config.ChainConfig) (*ecdsa.PrivateKey, error) {
	switch {
	case chain.PrivateKey != "":
		return wallet.ParsePrivateKey(chain.PrivateKey)
	case chain.KeystorePath != "":
		return wallet.LoadKeystoreKey(chain.KeystorePath, chain.Passphrase)
	case chain.Offline():
		return crypto.GenerateKey()
	default:
		return nil, fmt.Errorf("set CHAIN_PRIVATE_KEY or CHAIN_KEYSTORE_PATH to claim on %s", chain.RPCURL)
	}
}

// openDrop resolves slug and loads its supply into a fresh coordinator.
func (a *app) openDrop(ctx context.Context, slug string) (*catalog.Collection, *drop.Coordinator, error) {
	collection, err := a.catalog.Get(ctx, slug)
	if err != nil {
		return nil, nil, fmt.Errorf("load collection %q: %w", slug, err)
	}
	contract, err := a.ledger.Contract(ctx, collection.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("open drop contract: %w", err)
	}

	coord := drop.NewCoordinator(drop.Options{
		ReadTimeout:  a.cfg.Chain.ReadTimeout,
		ClaimTimeout: a.cfg.Chain.ClaimTimeout,
	})
	coord.SetIdentity(ctx, a.session.CurrentIdentity())
	coord.Attach(ctx, contract)
	return collection, coord, nil
}
