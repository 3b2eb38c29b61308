package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	repoCrypto "eventpass/crypto"
	"eventpass/native/pass"
	"eventpass/observability"
)

type redeemParams struct {
	Caller        string `json:"caller"`
	Signature     string `json:"signature"`
	Tier          string `json:"tier"`
	PaymentAmount string `json:"paymentAmount"`
}

type grantResult struct {
	Seq       uint64 `json:"seq"`
	Recipient string `json:"recipient"`
	Tier      string `json:"tier"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, req *RPCRequest, log *slog.Logger) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected redemption request object", nil)
		return
	}
	var params redeemParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid redemption request", err.Error())
		return
	}
	caller, err := repoCrypto.DecodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	sigHex := strings.TrimPrefix(strings.TrimSpace(params.Signature), "0x")
	if sigHex == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "signature required", nil)
		return
	}
	signature, err := hex.DecodeString(sigHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid signature encoding", err.Error())
		return
	}
	tier, err := pass.ParseTier(params.Tier)
	if err != nil {
		observability.Pass().Redemptions.WithLabelValues("unknown", observability.OutcomeRejected).Inc()
		writeError(w, http.StatusBadRequest, req.ID, codeUnknownTier, err.Error(), params.Tier)
		return
	}
	payment, ok := new(big.Int).SetString(strings.TrimSpace(params.PaymentAmount), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment amount", params.PaymentAmount)
		return
	}

	metrics := observability.Pass()
	grant, err := s.engine.Redeem(caller, signature, tier, payment)
	if err != nil {
		outcome := observability.OutcomeRejected
		switch {
		case errors.Is(err, pass.ErrInvalidSignature):
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, err.Error(), nil)
		case errors.Is(err, pass.ErrNotWhitelisted):
			writeError(w, http.StatusForbidden, req.ID, codeNotWhitelisted, err.Error(), nil)
		case errors.Is(err, pass.ErrAlreadyConsumed):
			writeError(w, http.StatusConflict, req.ID, codeAlreadyConsumed, err.Error(), nil)
		case errors.Is(err, pass.ErrUnknownTier):
			writeError(w, http.StatusBadRequest, req.ID, codeUnknownTier, err.Error(), nil)
		case errors.Is(err, pass.ErrPriceMismatch):
			writeError(w, http.StatusBadRequest, req.ID, codePriceMismatch, err.Error(), nil)
		default:
			outcome = observability.OutcomeError
			log.Error("redeem failed", "error", err)
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "redemption failed", nil)
		}
		metrics.Redemptions.WithLabelValues(tier.String(), outcome).Inc()
		return
	}
	metrics.Redemptions.WithLabelValues(tier.String(), observability.OutcomeSettled).Inc()
	weiCredited, _ := new(big.Float).SetInt(grant.Amount).Float64()
	metrics.WeiCredited.Add(weiCredited)
	log.Info("redemption settled", "recipient", grant.Recipient.Hex(), "tier", grant.Tier.String())
	writeResult(w, req.ID, toGrantResult(grant))
}

type withdrawParams struct {
	Payee string `json:"payee"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest, log *slog.Logger) {
	payee, ok := s.decodePayee(w, req)
	if !ok {
		return
	}
	metrics := observability.Pass()
	amount, err := s.engine.Withdraw(payee)
	if err != nil {
		switch {
		case errors.Is(err, pass.ErrNothingToRelease):
			metrics.Withdrawals.WithLabelValues(observability.OutcomeRejected).Inc()
			writeError(w, http.StatusConflict, req.ID, codeNothingToRelease, err.Error(), nil)
		default:
			metrics.Withdrawals.WithLabelValues(observability.OutcomeError).Inc()
			log.Error("withdraw failed", "payee", payee.Hex(), "error", err)
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "withdrawal failed", nil)
		}
		return
	}
	metrics.Withdrawals.WithLabelValues(observability.OutcomeSettled).Inc()
	weiReleased, _ := new(big.Float).SetInt(amount).Float64()
	metrics.WeiReleased.Add(weiReleased)
	log.Info("withdrawal settled", "payee", payee.Hex(), "amount", amount.String())
	writeResult(w, req.ID, map[string]string{"payee": payee.Hex(), "amount": amount.String()})
}

func (s *Server) handleReleasable(w http.ResponseWriter, req *RPCRequest) {
	payee, ok := s.decodePayee(w, req)
	if !ok {
		return
	}
	amount, err := s.engine.Releasable(payee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"payee": payee.Hex(), "releasable": amount.String()})
}

func (s *Server) decodePayee(w http.ResponseWriter, req *RPCRequest) (ethcommon.Address, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected payee object", nil)
		return ethcommon.Address{}, false
	}
	var params withdrawParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payee object", err.Error())
		return ethcommon.Address{}, false
	}
	payee, err := repoCrypto.DecodeAddress(params.Payee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payee address", err.Error())
		return ethcommon.Address{}, false
	}
	return payee, true
}

type grantsParams struct {
	Recipient string `json:"recipient"`
}

func (s *Server) handleGrants(w http.ResponseWriter, req *RPCRequest) {
	var grants []*pass.Grant
	var err error
	if len(req.Params) == 0 {
		grants, err = s.engine.Grants()
	} else {
		var params grantsParams
		if jsonErr := json.Unmarshal(req.Params[0], &params); jsonErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid grants filter", jsonErr.Error())
			return
		}
		recipient, addrErr := repoCrypto.DecodeAddress(params.Recipient)
		if addrErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", addrErr.Error())
			return
		}
		grants, err = s.engine.GrantsFor(recipient)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "grant query failed", nil)
		return
	}
	results := make([]grantResult, 0, len(grants))
	for _, grant := range grants {
		results = append(results, toGrantResult(grant))
	}
	writeResult(w, req.ID, results)
}

type infoResult struct {
	TokenName   string            `json:"tokenName"`
	TokenSymbol string            `json:"tokenSymbol"`
	BaseURI     string            `json:"baseURI"`
	DomainName  string            `json:"domainName"`
	Version     string            `json:"version"`
	ChainID     uint64            `json:"chainId"`
	Authority   string            `json:"authority"`
	Prices      map[string]string `json:"prices"`
	Payees      []payeeResult     `json:"payees"`
	Whitelist   []string          `json:"whitelist"`
}

type payeeResult struct {
	Address string `json:"address"`
	Shares  uint64 `json:"shares"`
}

func (s *Server) handleInfo(w http.ResponseWriter, req *RPCRequest) {
	domain := s.engine.Domain()
	metadata := s.engine.Metadata()
	prices := make(map[string]string, 3)
	for _, tier := range []pass.Tier{pass.TierStandard, pass.TierDiscounted, pass.TierPremium} {
		price, err := s.engine.Prices().PriceOf(tier)
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "price lookup failed", nil)
			return
		}
		prices[tier.String()] = price.String()
	}
	payees := make([]payeeResult, 0)
	for _, payee := range s.engine.Splitter().Payees() {
		payees = append(payees, payeeResult{Address: payee.Address.Hex(), Shares: payee.Shares})
	}
	members, err := s.engine.Whitelist().Members()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "whitelist query failed", nil)
		return
	}
	whitelist := make([]string, 0, len(members))
	for _, member := range members {
		whitelist = append(whitelist, member.Hex())
	}
	writeResult(w, req.ID, infoResult{
		TokenName:   metadata.Name,
		TokenSymbol: metadata.Symbol,
		BaseURI:     metadata.BaseURI,
		DomainName:  domain.Name,
		Version:     domain.Version,
		ChainID:     domain.ChainID,
		Authority:   domain.Authority.Hex(),
		Prices:      prices,
		Payees:      payees,
		Whitelist:   whitelist,
	})
}

func toGrantResult(grant *pass.Grant) grantResult {
	return grantResult{
		Seq:       grant.Seq,
		Recipient: grant.Recipient.Hex(),
		Tier:      grant.Tier.String(),
		Amount:    grant.Amount.String(),
		Timestamp: grant.Timestamp,
	}
}
