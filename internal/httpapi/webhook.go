package httpapi

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/service/saga"
)

// midtransWebhook принимает уведомление шлюза. Подпись проверяется до любых
// изменений состояния; 500 просит шлюз повторить доставку.
func (s *Server) midtransWebhook(w http.ResponseWriter, r *http.Request) {
	var n domain.PaymentNotification
	if err := decodeJSON(w, r, &n); err != nil {
		s.logger.WithError(err).Warn("malformed payment notification")
		writeText(w, http.StatusBadRequest, "bad request")
		return
	}

	logger := s.logger.WithFields(log.Fields{"order_id": n.OrderID, "status": n.TransactionStatus})
	if s.verifier == nil || !s.verifier.VerifySignature(n) {
		logger.WithError(domain.ErrInvalidSignature).Warn("payment notification rejected")
		s.recordWebhook("", "bad_signature")
		writeText(w, http.StatusUnauthorized, "bad signature")
		return
	}

	switch {
	case n.TransactionStatus.IsSuccess():
		outcome, err := s.orders.Settle(r.Context(), n)
		s.recordWebhook(n.TransactionStatus, outcome.String())
		if err != nil || outcome == saga.OutcomeFailed {
			logger.WithError(err).Error("settlement failed, asking gateway to retry")
			writeText(w, http.StatusInternalServerError, "error")
			return
		}
		logger.WithField("outcome", outcome.String()).Info("settlement notification handled")

	case n.TransactionStatus.IsTerminalFailure():
		released := s.orders.Release(r.Context(), n.OrderID, string(n.TransactionStatus))
		outcome := "released"
		if !released {
			outcome = "ignored"
		}
		s.recordWebhook(n.TransactionStatus, outcome)
		logger.WithField("released", released).Info("terminal payment status handled")

	default:
		s.recordWebhook(n.TransactionStatus, "ignored")
		logger.Debug("non-terminal payment status acknowledged")
	}

	writeText(w, http.StatusOK, "ok")
}

func (s *Server) recordWebhook(status domain.TransactionStatus, outcome string) {
	if s.metrics == nil {
		return
	}
	label := string(status)
	if label == "" {
		label = "unknown"
	}
	s.metrics.RecordWebhook(label, outcome)
}
