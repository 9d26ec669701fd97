package handler

import (
	"context"
	"net/http"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/usecase"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

type verdictLister interface {
	Execute(ctx context.Context, limit int) ([]*dto.VerdictRecordDTO, error)
}

// VerdictAPIHandler отдает историю зафиксированных вердиктов
type VerdictAPIHandler struct {
	listVerdicts verdictLister
	logger       *logger.Logger
}

func NewVerdictAPIHandler(listVerdicts *usecase.ListVerdictsUseCase, logger *logger.Logger) *VerdictAPIHandler {
	return &VerdictAPIHandler{
		listVerdicts: listVerdicts,
		logger:       logger,
	}
}

type verdictListResponse struct {
	Items []*dto.VerdictRecordDTO `json:"items"`
	Count int                     `json:"count"`
}

// ListVerdicts возвращает последние вердикты, новые первыми
func (h *VerdictAPIHandler) ListVerdicts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	items, err := h.listVerdicts.Execute(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list verdicts", err, "request_id", middleware.RequestIDFrom(r))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to fetch verdicts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, verdictListResponse{Items: items, Count: len(items)})
}
