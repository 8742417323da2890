package main

import (
	"context"
	"crypto/ecdsa"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mintdrop/internal/catalog"
	"mintdrop/internal/config"
	"mintdrop/internal/ledger"
	"mintdrop/internal/server"
	"mintdrop/internal/wallet"

	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	var store catalog.Store
	if cfg.Service.CatalogDSN != "" {
		pgStore, err := catalog.NewPostgresStore(ctx, cfg.Service.CatalogDSN)
		if err != nil {
			log.Fatalf("catalog store error: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		fileStore, err := catalog.NewFileStore(cfg.Service.CatalogPath)
		if err != nil {
			log.Fatalf("catalog store error: %v", err)
		}
		store = fileStore
	}

	key, err := loadKey(cfg.Chain)
	if err != nil {
		log.Fatalf("wallet error: %v", err)
	}
	session := wallet.NewKeySession(key, wallet.AutoApprove{})
	log.Printf("wallet %s ready", wallet.Identity(session.Address().Hex()).Short())

	var ledgerClient ledger.Client
	if cfg.Chain.Offline() {
		log.Printf("no RPC endpoint configured, using in-memory ledger")
		ledgerClient = ledger.NewFakeClient(ledger.DefaultFakeSeed(), session)
	} else {
		ethClient, err := ledger.NewEthClient(ctx, ledger.EthClientConfig{
			RPCURL:              cfg.Chain.RPCURL,
			NativeSymbol:        cfg.Chain.NativeSymbol,
			ReceiptPollInterval: cfg.Chain.ReceiptPoll,
			ChainID:             cfg.Chain.ChainID,
			Signer:              session,
		})
		if err != nil {
			log.Fatalf("ledger client error: %v", err)
		}
		defer ethClient.Close()
		ledgerClient = ethClient
	}

	apiServer := server.NewServer(cfg, store, ledgerClient, session)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
}

// loadKey prefers CHAIN_PRIVATE_KEY, then the keystore. Without either a throwaway key is
// generated, which only makes sense against the in-memory ledger.
func loadKey(chain config.ChainConfig) (*ecdsa.PrivateKey, error) {
	switch {
	case chain.PrivateKey != "":
		return wallet.ParsePrivateKey(chain.PrivateKey)
	case chain.KeystorePath != "":
		return wallet.LoadKeystoreKey(chain.KeystorePath, chain.Passphrase)
	default:
		log.Printf("no key configured, generating an ephemeral one")
		return crypto.GenerateKey()
	}
}
