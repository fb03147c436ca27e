package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vultisig/schedpay/internal/conv"
	"github.com/vultisig/schedpay/internal/service"
	"github.com/vultisig/schedpay/reconcile"
)

const (
	viewAll     = "all"
	viewHistory = "history"
)

type statusRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

type timelineRequest struct {
	ID   string `param:"id" validate:"required,uuid"`
	Lead string `query:"lead" validate:"omitempty,eth_addr"`
	View string `query:"view" validate:"omitempty,oneof=all history"`
}

type StatusResponse struct {
	AgreementID string                        `json:"agreement_id"`
	Status      reconcile.PaymentStatus       `json:"status"`
	Statuses    []reconcile.InstallmentStatus `json:"statuses"`
	Progress    reconcile.Progress            `json:"progress"`
}

type TimelineResponse struct {
	AgreementID  string                          `json:"agreement_id"`
	Status       reconcile.PaymentStatus         `json:"status"`
	View         string                          `json:"view"`
	Installments []reconcile.ResolvedInstallment `json:"installments"`
}

func (s *Server) GetStatus(c echo.Context) error {
	var req statusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(MsgInvalidRequest, err.Error()))
	}

	res, err := s.resolve(c, req.ID, service.Options{})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, StatusResponse{
		AgreementID: res.AgreementID,
		Status:      res.Status,
		Statuses:    res.Statuses,
		Progress:    res.Progress,
	}))
}

func (s *Server) GetTimeline(c echo.Context) error {
	var req timelineRequest
	if err := bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(MsgInvalidRequest, err.Error()))
	}
	req.View = conv.ValueOrDefault(req.View, viewAll)

	res, err := s.resolve(c, req.ID, service.Options{PreferredLead: req.Lead})
	if err != nil {
		return s.writeError(c, err)
	}

	installments := res.Timeline
	if req.View == viewHistory {
		installments = reconcile.History(installments)
	}
	if installments == nil {
		installments = []reconcile.ResolvedInstallment{}
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, TimelineResponse{
		AgreementID:  res.AgreementID,
		Status:       res.Status,
		View:         req.View,
		Installments: installments,
	}))
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

func (s *Server) resolve(c echo.Context, rawID string, opts service.Options) (reconcile.Resolution, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return reconcile.Resolution{}, errInvalidID
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.reqTimeout)
	defer cancel()
	return s.resolver.Reconcile(ctx, id, opts)
}

var errInvalidID = errors.New("invalid agreement id")

func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errInvalidID):
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(MsgInvalidRequest, err.Error()))
	case s.notFound != nil && errors.Is(err, s.notFound):
		return c.JSON(http.StatusNotFound, NewErrorResponseWithMessage(MsgAgreementNotFound))
	default:
		s.logger.WithError(err).WithField("agreement_id", c.Param("id")).Error("failed to reconcile agreement")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(MsgInternalError))
	}
}
