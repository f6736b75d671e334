package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/boltstore"
)

// Sheet is the persistent spreadsheet behind the API
type Sheet interface {
	Get(address string) (formula.Value, error)
	Input(address string) (string, bool, error)
	Set(address, input string) error
	Remove(address string) (bool, error)
	Entries(sheet string) ([]boltstore.Entry, error)
	Evaluate(text, address string) (formula.Value, error)
	ClearCache()
}

var _ Sheet = (*boltstore.Store)(nil)

// Controller handles the API routes
type Controller interface {
	GetCellAction(c *gin.Context)
	SetCellAction(c *gin.Context)
	DeleteCellAction(c *gin.Context)
	GetSheetAction(c *gin.Context)
	EvaluateAction(c *gin.Context)
	ClearCacheAction(c *gin.Context)
}

// ApiController serves cells of one Sheet. requests are serialized since
// the evaluator behind the sheet is single-threaded.
type ApiController struct {
	sheet  Sheet
	logger *slog.Logger
	mu     sync.Mutex
}

var _ Controller = (*ApiController)(nil)

type CellEndpointParams struct {
	Sheet string `uri:"sheet" binding:"required"`
	Cell  string `uri:"cell" binding:"required"`
}

type SheetEndpointParams struct {
	Sheet string `uri:"sheet" binding:"required"`
}

type SetCellRequest struct {
	Value *string `json:"value" binding:"required"`
}

type EvaluateRequest struct {
	Formula string `json:"formula" binding:"required"`
	// cell the formula is evaluated at; defaults to A1 of the active sheet
	At string `json:"at"`
}

// CellResponse is the JSON rendering of a cell
type CellResponse struct {
	Cell  string `json:"cell"`
	Input string `json:"input,omitempty"`
	Value any    `json:"value"`
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

func NewApiController(sheet Sheet, logger *slog.Logger) *ApiController {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApiController{sheet: sheet, logger: logger}
}

func (api *ApiController) GetCellAction(c *gin.Context) {
	params := CellEndpointParams{}
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	address := cellAddress(params)
	response, err := api.cell(address)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (api *ApiController) SetCellAction(c *gin.Context) {
	params := CellEndpointParams{}
	request := SetCellRequest{}

	err := c.ShouldBindUri(&params)
	if err == nil {
		err = c.ShouldBindJSON(&request)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	address := cellAddress(params)
	if err := api.sheet.Set(address, *request.Value); err != nil {
		api.fail(c, err)
		return
	}
	response, err := api.cell(address)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (api *ApiController) DeleteCellAction(c *gin.Context) {
	params := CellEndpointParams{}
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	removed, err := api.sheet.Remove(cellAddress(params))
	if err != nil {
		api.fail(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "cell is empty"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (api *ApiController) GetSheetAction(c *gin.Context) {
	params := SheetEndpointParams{}
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	entries, err := api.sheet.Entries(params.Sheet)
	if err != nil {
		api.fail(c, err)
		return
	}

	cells := make([]*CellResponse, 0, len(entries))
	for _, entry := range entries {
		address := quoteSheet(params.Sheet) + "!" + entry.Address
		response, err := api.cell(address)
		if err != nil {
			// one unimplemented function must not hide the whole sheet
			var unimplemented *formula.UnimplementedError
			if !errors.As(err, &unimplemented) {
				api.fail(c, err)
				return
			}
			response = &CellResponse{Cell: address, Input: entry.Input, Type: "unimplemented", Error: err.Error()}
		}
		cells = append(cells, response)
	}
	c.JSON(http.StatusOK, gin.H{"sheet": params.Sheet, "cells": cells})
}

func (api *ApiController) EvaluateAction(c *gin.Context) {
	request := EvaluateRequest{}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if request.At == "" {
		request.At = "A1"
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	v, err := api.sheet.Evaluate(request.Formula, request.At)
	if err != nil {
		api.fail(c, err)
		return
	}
	response := render(v)
	response.Cell = request.At
	response.Input = request.Formula
	c.JSON(http.StatusOK, response)
}

func (api *ApiController) ClearCacheAction(c *gin.Context) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.sheet.ClearCache()
	c.Status(http.StatusNoContent)
}

func (api *ApiController) cell(address string) (*CellResponse, error) {
	v, err := api.sheet.Get(address)
	if err != nil {
		return nil, err
	}
	input, _, err := api.sheet.Input(address)
	if err != nil {
		return nil, err
	}
	response := render(v)
	response.Cell = address
	response.Input = input
	return response, nil
}

func (api *ApiController) fail(c *gin.Context, err error) {
	status := StatusOf(err)
	body := gin.H{"error": err.Error()}

	var unimplemented *formula.UnimplementedError
	if errors.As(err, &unimplemented) {
		body["function"] = unimplemented.Function
	}
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		api.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
	}
	c.JSON(status, body)
}

// StatusOf maps an error to an HTTP status
func StatusOf(err error) int {
	if errors.Is(err, formula.ErrUnimplemented) {
		return http.StatusNotImplemented
	}
	if errors.Is(err, formula.ErrInvalidFormula) {
		return http.StatusUnprocessableEntity
	}

	var appErr *formula.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case formula.NotFound:
			return http.StatusNotFound
		case formula.InvalidArgument:
			return http.StatusBadRequest
		case formula.AlreadyExists:
			return http.StatusConflict
		case formula.FailedPrecondition:
			return http.StatusPreconditionFailed
		}
	}
	return http.StatusInternalServerError
}

// render converts a value to its JSON form
func render(v formula.Value) *CellResponse {
	response := &CellResponse{Type: v.Kind().String()}
	switch x := v.(type) {
	case formula.Number:
		response.Value = float64(x)
	case formula.Text:
		response.Value = string(x)
	case formula.Boolean:
		response.Value = bool(x)
	case *formula.SpreadsheetError:
		response.Value = x.String()
		response.Error = x.String()
	}
	return response
}

func cellAddress(params CellEndpointParams) string {
	return quoteSheet(params.Sheet) + "!" + params.Cell
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
