package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/settlement"
)

type intentRequest struct {
	IntentText         string          `json:"intent_text"`
	SourceToken        string          `json:"source_token"`
	DestinationToken   string          `json:"destination_token"`
	SourceAmount       decimal.Decimal `json:"source_amount"`
	DestinationChainID int             `json:"destination_chain_id"`
	User               string          `json:"user"`
}

type auctionRequest struct {
	IntentID        string          `json:"intent_id"`
	StartPrice      decimal.Decimal `json:"start_price"`
	EndPrice        decimal.Decimal `json:"end_price"`
	DurationSeconds int64           `json:"duration_seconds"`
}

// orderResponse hands the preimages to the order's creator exactly once
type orderResponse struct {
	Order   *models.CrossChainOrder `json:"order"`
	Secrets []string                `json:"secrets"`
}

type revealRequest struct {
	Secrets []string `json:"secrets"`
}

func (s *Service) registerRoutes() {
	s.health.Handle("POST /intents", http.HandlerFunc(s.handleCreateIntent))
	s.health.Handle("GET /intents/{id}", http.HandlerFunc(s.handleGetIntent))
	s.health.Handle("POST /auctions", http.HandlerFunc(s.handleCreateAuction))
	s.health.Handle("GET /auctions/{id}", http.HandlerFunc(s.handleGetAuction))
	s.health.Handle("POST /auctions/{id}/fill", http.HandlerFunc(s.handleFillAuction))
	s.health.Handle("POST /auctions/{id}/cancel", http.HandlerFunc(s.handleCancelAuction))
	s.health.Handle("POST /orders", http.HandlerFunc(s.handleCreateOrder))
	s.health.Handle("POST /orders/{id}/secrets", http.HandlerFunc(s.handleReveal))
	s.health.Handle("POST /orders/{id}/refund", http.HandlerFunc(s.handleRefund))
}

func (s *Service) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !s.decode(w, r, &req) {
		return
	}
	intent, err := s.engine.CreateIntent(req.IntentText, req.SourceToken, req.DestinationToken,
		req.SourceAmount, req.DestinationChainID, req.User)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, intent)
}

func (s *Service) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := s.engine.GetIntent(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, intent)
}

func (s *Service) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req auctionRequest
	if !s.decode(w, r, &req) {
		return
	}
	intent, err := s.engine.GetIntent(req.IntentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	auction, err := s.engine.CreateAuctionOrder(intent, req.StartPrice, req.EndPrice, req.DurationSeconds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, auction)
}

func (s *Service) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := s.engine.GetAuctionOrder(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, auction)
}

func (s *Service) handleFillAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := s.engine.FillAuctionOrder(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, auction)
}

func (s *Service) handleCancelAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := s.engine.CancelAuctionOrder(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, auction)
}

func (s *Service) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !s.decode(w, r, &req) {
		return
	}
	order, err := s.Settle(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := orderResponse{Order: order, Secrets: make([]string, 0, len(order.Secrets))}
	for _, secret := range order.Secrets {
		resp.Secrets = append(resp.Secrets, secret.Hex())
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Service) handleReveal(w http.ResponseWriter, r *http.Request) {
	var req revealRequest
	if !s.decode(w, r, &req) {
		return
	}

	revealed := make([]models.Secret, 0, len(req.Secrets))
	for _, raw := range req.Secrets {
		b, err := hexutil.Decode(raw)
		if err != nil || len(b) != len(models.Secret{}) {
			http.Error(w, fmt.Sprintf("Invalid secret %q, must be 32 bytes of 0x-prefixed hex", raw), http.StatusBadRequest)
			return
		}
		var secret models.Secret
		copy(secret[:], b)
		revealed = append(revealed, secret)
	}

	completed, err := s.engine.CompleteWithSecrets(r.PathValue("id"), revealed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

func (s *Service) handleRefund(w http.ResponseWriter, r *http.Request) {
	refunded, err := s.engine.Refund(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"refunded": refunded})
}

func (s *Service) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, settlement.ErrOrderNotFound),
		errors.Is(err, settlement.ErrIntentNotFound),
		errors.Is(err, settlement.ErrAuctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrInvalidIntent),
		errors.Is(err, settlement.ErrInvalidAuctionParams),
		errors.Is(err, settlement.ErrInvalidOrderParams),
		errors.Is(err, settlement.ErrUnsupportedChainPair):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrInvalidTransition),
		errors.Is(err, settlement.ErrStepsIncomplete),
		errors.Is(err, settlement.ErrStepInFlight):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("Request failed: %v", err)
	}
	http.Error(w, err.Error(), code)
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding JSON response: %v", err)
	}
}
