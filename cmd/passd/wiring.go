package main

import (
	"log/slog"
	"math/big"
	"path/filepath"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"eventpass/config"
	"eventpass/core/events"
	"eventpass/core/types"
	"eventpass/native/pass"
	"eventpass/storage"
)

// logEmitter forwards engine events to the structured log so downstream
// systems can tail settlements without an indexer.
type logEmitter struct {
	log *slog.Logger
}

func (e logEmitter) Emit(event events.Event) {
	attrs := []any{"eventType", event.EventType()}
	if payloader, ok := event.(interface{ Event() *types.Event }); ok {
		for key, value := range payloader.Event().Attributes {
			attrs = append(attrs, key, value)
		}
	}
	e.log.Info("engine event", attrs...)
}

func openDatabase(cfg *config.Config, inMemory bool) (storage.Database, error) {
	if inMemory {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
}

func buildEngine(cfg *config.Config, state *pass.Manager, logger *slog.Logger) (*pass.Engine, error) {
	domain, err := cfg.DomainDescriptor()
	if err != nil {
		return nil, err
	}
	prices, err := cfg.PriceTable()
	if err != nil {
		return nil, err
	}
	payees, err := cfg.PayeeList()
	if err != nil {
		return nil, err
	}
	members, err := cfg.WhitelistMembers()
	if err != nil {
		return nil, err
	}
	whitelist, err := pass.NewWhitelist(state, members)
	if err != nil {
		return nil, err
	}
	// Balance transfers are the host ledger's responsibility; the daemon
	// surfaces each settlement instruction on the structured log.
	transfer := func(to ethcommon.Address, amount *big.Int) error {
		logger.Info("transfer instruction", "to", to.Hex(), "amount", amount.String())
		return nil
	}
	splitter, err := pass.NewSplitter(state, payees, transfer)
	if err != nil {
		return nil, err
	}
	grants, err := pass.NewGrantLedger(state)
	if err != nil {
		return nil, err
	}
	engine, err := pass.NewEngine(domain, cfg.TokenMetadata(), whitelist, prices, splitter, grants)
	if err != nil {
		return nil, err
	}
	engine.SetEmitter(logEmitter{log: logger})
	return engine, nil
}
