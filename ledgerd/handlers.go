package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/ledgerapi"
)

// HandleRequest applies one protocol request to the ledger and builds the
// response. It never panics on bad input; every failure becomes an
// unsuccessful response carrying the ledger error code when there is one.
func (s *LedgerServer) HandleRequest(req ledgerapi.LedgerRequest) ledgerapi.LedgerResponse {
	startTime := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	logger := s.log.WithFields(logrus.Fields{
		"type":       req.Type,
		"caller":     req.Caller,
		"request_id": req.RequestID,
	})
	logger.Debug("Received request")

	resp, err := s.dispatch(req)
	resp.RequestID = req.RequestID
	resp.ProcessingTime = time.Since(startTime).Milliseconds()

	if err != nil {
		resp.Success = false
		resp.Code = core.ErrorCode(err)
		resp.Message = err.Error()
		if resp.Code != "" {
			logger.WithField("code", resp.Code).Info("Request rejected")
		} else {
			logger.WithError(err).Error("Request failed")
		}
		return resp
	}

	resp.Success = true
	logger.WithField("processing_ms", resp.ProcessingTime).Debug("Request processed")
	return resp
}

func (s *LedgerServer) dispatch(req ledgerapi.LedgerRequest) (ledgerapi.LedgerResponse, error) {
	resp := ledgerapi.LedgerResponse{Type: ledgerapi.ResponseType(req.Type)}
	caller := core.Identity(req.Caller)

	switch req.Type {
	case ledgerapi.TypePing:
		resp.Message = "ledger is healthy"
		resp.Timestamp = time.Now().Unix()
		resp.Phase = s.ledger.Phase().String()
		return resp, nil

	case ledgerapi.TypeAuthorize:
		return resp, s.ledger.Authorize(caller, core.Identity(req.Identity))

	case ledgerapi.TypeSetAuctionTiming:
		return resp, s.ledger.SetAuctionTiming(caller, req.Start, req.End)

	case ledgerapi.TypeProduct:
		price, err := parseDecimal(req.Price)
		if err != nil && !req.Remove {
			// Ownership is checked before the payload, as in the ledger itself.
			if caller != s.ledger.Owner() {
				return resp, fmt.Errorf("product: %w", core.ErrForbidden)
			}
			return resp, fmt.Errorf("product %d price %q: %w", req.ProductCode, req.Price, core.ErrInvalidPrice)
		}
		return resp, s.ledger.Product(caller, req.ProductCode, price, req.Remove)

	case ledgerapi.TypeBid:
		amount, err := parseDecimal(req.Amount)
		if err != nil {
			return resp, fmt.Errorf("bid amount %q: %w", req.Amount, core.ErrInvalidAmount)
		}
		receipt, err := s.ledger.Bid(caller, req.ProductCode, amount)
		if err != nil {
			return resp, err
		}
		resp.Receipt = receipt
		return resp, nil

	case ledgerapi.TypeGetCurrentBid:
		amount, err := s.ledger.CurrentBid(req.ProductCode, core.Identity(req.Identity))
		if err != nil {
			return resp, err
		}
		resp.Amount = amount.String()
		return resp, nil

	case ledgerapi.TypeGetHighestBid:
		resp.Amount = s.ledger.HighestBid(req.ProductCode).String()
		return resp, nil

	case ledgerapi.TypeGetWinners:
		winners, err := s.ledger.Winners(caller)
		if err != nil {
			return resp, err
		}
		resp.Winners = winners
		return resp, nil

	case ledgerapi.TypeGetProduct:
		product := s.ledger.LookupProduct(req.ProductCode)
		resp.Product = &product
		return resp, nil

	case ledgerapi.TypeGetProductKey:
		code, err := s.ledger.ProductKey(req.Index)
		if err != nil {
			return resp, err
		}
		resp.ProductCode = code
		return resp, nil

	case ledgerapi.TypeLiveProductsCount:
		resp.Count = s.ledger.LiveProductsCount()
		return resp, nil

	case ledgerapi.TypeIsAllowedBuyer:
		resp.Allowed = s.ledger.IsAllowedBuyer(core.Identity(req.Identity))
		return resp, nil

	case ledgerapi.TypeGetSettlement:
		return s.handleSettlement(resp, caller)

	case ledgerapi.TypeGetSnapshot:
		if caller != s.ledger.Owner() {
			return resp, fmt.Errorf("snapshot: %w", core.ErrForbidden)
		}
		encoded, err := ledgerapi.EncodeSnapshot(s.ledger.Snapshot())
		if err != nil {
			return resp, err
		}
		compressed, err := encoded.CompressGzip()
		if err != nil {
			return resp, err
		}
		resp.Snapshot = compressed
		return resp, nil

	case ledgerapi.TypeGetPublicKey:
		publicKeyPEM, err := s.keyManager.PublicKeyPEM()
		if err != nil {
			return resp, fmt.Errorf("failed to export public key: %w", err)
		}
		resp.PublicKey = publicKeyPEM
		return resp, nil

	default:
		resp.Type = ledgerapi.TypeError
		return resp, fmt.Errorf("unknown request type: %s", req.Type)
	}
}

func (s *LedgerServer) handleSettlement(resp ledgerapi.LedgerResponse, caller core.Identity) (ledgerapi.LedgerResponse, error) {
	result, err := s.ledger.Settle(caller)
	if err != nil {
		return resp, err
	}

	settlement, err := ledgerapi.NewSettlement(uuid.New().String(), s.ledger.Owner(), result)
	if err != nil {
		return resp, err
	}

	coseBytes, err := s.keyManager.SignSettlement(settlement)
	if err != nil {
		return resp, fmt.Errorf("failed to sign settlement: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"settlement_id": settlement.SettlementID,
		"winners":       len(settlement.Winners),
		"unsold":        len(settlement.Unsold),
		"phase":         settlement.Phase,
	}).Info("Settlement signed")

	resp.Winners = settlement.Winners
	resp.Phase = settlement.Phase
	resp.Settlement = coseBytes.EncodeBase64()
	return resp, nil
}

// parseDecimal reads a decimal amount from the wire. An empty string is zero.
func parseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
