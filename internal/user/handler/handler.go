// Package handler exposes the customer and OTP operations over HTTP.
// Every response carries the {statusCode, message, data} envelope.
package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"launtriserv/backend/internal/apperror"
	customersvc "launtriserv/backend/internal/customer/service"
	otpsvc "launtriserv/backend/internal/otp/service"
	"launtriserv/backend/internal/user/domain"
)

// OTPSender delivers a plain code out of band. Used when dev OTP return is off.
type OTPSender interface {
	SendOTP(phone, code string) error
}

// Handler wires the customer and OTP services to fiber routes.
type Handler struct {
	customers *customersvc.CustomerService
	otp       *otpsvc.OTPService
	sender    OTPSender
	returnOTP bool
	log       *zap.Logger
}

// New returns a Handler. sender may be nil when returnOTP is true.
func New(customers *customersvc.CustomerService, otp *otpsvc.OTPService, sender OTPSender, returnOTP bool, log *zap.Logger) *Handler {
	return &Handler{
		customers: customers,
		otp:       otp,
		sender:    sender,
		returnOTP: returnOTP,
		log:       log,
	}
}

// Register mounts all routes under /v1/customers.
func (h *Handler) Register(app fiber.Router) {
	g := app.Group("/v1/customers")
	g.Post("/otp", h.IssueOTP)
	g.Post("/otp/verify", h.VerifyOTP)
	g.Get("/", h.ListCustomers)
	g.Get("/search", h.SearchCustomer)
	g.Put("/:id", h.UpdateCustomer)
}

// response is the envelope every endpoint returns.
type response struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(response{
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// fail maps an error kind to its HTTP status and responds with the envelope.
// Internal causes are logged, not leaked.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, apperror.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, apperror.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperror.ErrRateLimited):
		status = fiber.StatusTooManyRequests
	default:
		h.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return respond(c, status, apperror.Message(err), nil)
}

// customerResponse is the customer payload. OTP material never leaves the service.
type customerResponse struct {
	ID            int64     `json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Role          string    `json:"role"`
	AccountStatus string    `json:"account_status"`
	ProfileStatus string    `json:"profile_status"`
	OTPVerified   bool      `json:"is_otp_verified"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toCustomerResponse(u *domain.User) *customerResponse {
	return &customerResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Role:          string(u.Role),
		AccountStatus: u.AccountStatus,
		ProfileStatus: u.ProfileStatus,
		OTPVerified:   u.OTPVerified,
		Latitude:      u.Latitude,
		Longitude:     u.Longitude,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

type issueOTPRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type issueOTPResponse struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	OTP       string    `json:"otp,omitempty"`
}

// IssueOTP resolves or creates the customer for the contact pair and issues a code.
// The code goes out by SMS unless dev OTP return is enabled.
func (h *Handler) IssueOTP(c *fiber.Ctx) error {
	var req issueOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	res, err := h.otp.Issue(c.Context(), req.Email, req.Phone)
	if err != nil {
		return h.fail(c, err)
	}
	out := issueOTPResponse{UserID: res.UserID, ExpiresAt: res.ExpiresAt}
	if h.returnOTP {
		out.OTP = res.Code
	} else if h.sender != nil {
		// delivery is best effort; the code stays valid either way
		phone := req.Phone
		code := res.Code
		go func() {
			if err := h.sender.SendOTP(phone, code); err != nil {
				h.log.Error("otp sms delivery failed", zap.Int64("user_id", res.UserID), zap.Error(err))
			}
		}()
	}
	return respond(c, fiber.StatusOK, "OTP issued successfully", out)
}

type verifyOTPRequest struct {
	UserID int64  `json:"user_id"`
	OTP    string `json:"otp"`
}

// VerifyOTP checks the submitted code. A wrong, expired, or unknown code is a
// 200 with verified=false, not an error.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	ok, err := h.otp.Verify(c.Context(), req.UserID, req.OTP)
	if err != nil {
		return h.fail(c, err)
	}
	msg := "OTP verification failed"
	if ok {
		msg = "OTP verified successfully"
	}
	return respond(c, fiber.StatusOK, msg, fiber.Map{"verified": ok})
}

// ListCustomers returns every customer on record.
func (h *Handler) ListCustomers(c *fiber.Ctx) error {
	users, err := h.customers.List(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]*customerResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toCustomerResponse(u))
	}
	return respond(c, fiber.StatusOK, "Customers fetched successfully", out)
}

// SearchCustomer looks a customer up by id, email, or phone query parameter,
// in that precedence.
func (h *Handler) SearchCustomer(c *fiber.Ctx) error {
	var id int64
	if raw := c.Query("id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return respond(c, fiber.StatusBadRequest, "id must be numeric", nil)
		}
		id = parsed
	}
	u, err := h.customers.FindByIDOrEmailOrPhone(c.Context(), id, c.Query("email"), c.Query("phone"))
	if err != nil {
		return h.fail(c, err)
	}
	if u == nil {
		return respond(c, fiber.StatusNotFound, "User not found", nil)
	}
	return respond(c, fiber.StatusOK, "User details fetched successfully", toCustomerResponse(u))
}

type updateCustomerRequest struct {
	Name          *string  `json:"name"`
	Email         *string  `json:"email"`
	Phone         *string  `json:"phone"`
	AccountStatus *string  `json:"account_status"`
	ProfileStatus *string  `json:"profile_status"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

// UpdateCustomer applies a partial update to the customer with the given id.
func (h *Handler) UpdateCustomer(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return respond(c, fiber.StatusBadRequest, "id must be a positive integer", nil)
	}
	var req updateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	u, err := h.customers.Update(c.Context(), id, customersvc.UpdateFields{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		AccountStatus: req.AccountStatus,
		ProfileStatus: req.ProfileStatus,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	})
	if err != nil {
		return h.fail(c, err)
	}
	if u == nil {
		return respond(c, fiber.StatusNotFound, "Customer not found", nil)
	}
	return respond(c, fiber.StatusOK, "Customer updated successfully", toCustomerResponse(u))
}
