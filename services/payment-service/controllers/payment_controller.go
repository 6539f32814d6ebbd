package controllers

import (
	"net/http"
	"time"

	"github.com/PraiaOps/PraiAtiva-sub001/services/common/auth"
	apperrors "github.com/PraiaOps/PraiAtiva-sub001/services/common/errors"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/middleware"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentController struct {
	Sessions      *services.SessionService
	Payments      *services.PaymentService
	Ledger        *services.LedgerService
	Webhooks      *services.WebhookService
	Logger        *zap.Logger
	ReceiptExpiry time.Duration
}

type createSessionRequest struct {
	PaymentID    string       `json:"paymentId" binding:"required"`
	EnrollmentID string       `json:"enrollmentId"`
	Amount       models.Money `json:"amount" binding:"required"`
	StudentName  string       `json:"studentName" binding:"required"`
	ActivityName string       `json:"activityName" binding:"required"`
}

// CreatePaymentSession opens a hosted checkout for a pending payment.
func (pc *PaymentController) CreatePaymentSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest("Invalid request body", err))
		return
	}

	session, err := pc.Sessions.CreatePaymentSession(c.Request.Context(), services.SessionRequest{
		PaymentID:    req.PaymentID,
		EnrollmentID: req.EnrollmentID,
		Amount:       req.Amount,
		StudentName:  req.StudentName,
		ActivityName: req.ActivityName,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": session.ID, "url": session.URL})
}

type createPaymentRequest struct {
	ID           string       `json:"id"`
	EnrollmentID string       `json:"enrollmentId" binding:"required"`
	StudentID    string       `json:"studentId"`
	InstructorID string       `json:"instructorId"`
	StudentName  string       `json:"studentName" binding:"required"`
	ActivityName string       `json:"activityName" binding:"required"`
	Amount       models.Money `json:"amount" binding:"required"`
	Currency     string       `json:"currency"`
}

// CreatePayment registers the pending payment of a new enrollment. Students
// can only create payments for themselves.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest("Invalid request body", err))
		return
	}
	studentID := req.StudentID
	if principal.Role == auth.RoleStudent {
		studentID = principal.UserID
	}

	payment, err := pc.Payments.CreatePayment(c.Request.Context(), services.NewPaymentInput{
		ID:           req.ID,
		EnrollmentID: req.EnrollmentID,
		StudentID:    studentID,
		InstructorID: req.InstructorID,
		StudentName:  req.StudentName,
		ActivityName: req.ActivityName,
		Amount:       req.Amount,
		Currency:     req.Currency,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func canView(p auth.Principal, payment *models.Payment) bool {
	switch p.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleStudent:
		return payment.StudentID != "" && payment.StudentID == p.UserID
	case auth.RoleInstructor:
		return payment.InstructorID != "" && payment.InstructorID == p.UserID
	default:
		return false
	}
}

func (pc *PaymentController) GetPayment(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	payment, err := pc.Payments.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !canView(principal, payment) {
		fail(c, apperrors.Forbidden("Forbidden"))
		return
	}
	c.JSON(http.StatusOK, payment)
}

// RefundPayment asks Stripe for a full refund. The payment flips to refunded
// once the charge.refunded webhook is processed.
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	refundID, err := pc.Payments.RequestRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"refundId": refundID, "status": "requested"})
}

// ListEnrollmentTransactions returns the ledger of one enrollment. Instructors
// only see entries of payments they teach.
func (pc *PaymentController) ListEnrollmentTransactions(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)
	ctx := c.Request.Context()

	txs, err := pc.Ledger.ListByEnrollment(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	visible := make([]models.Transaction, 0, len(txs))
	allowed := map[string]bool{}
	for _, tx := range txs {
		if principal.Role != auth.RoleAdmin {
			ok, seen := allowed[tx.PaymentID]
			if !seen {
				payment, err := pc.Payments.GetPayment(ctx, tx.PaymentID)
				if err != nil {
					fail(c, err)
					return
				}
				ok = canView(principal, payment)
				allowed[tx.PaymentID] = ok
			}
			if !ok {
				continue
			}
		}
		visible = append(visible, tx)
	}
	c.JSON(http.StatusOK, gin.H{"transactions": visible})
}

// GetReceipt returns a short-lived download link for a transaction receipt.
func (pc *PaymentController) GetReceipt(c *gin.Context) {
	expiry := pc.ReceiptExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	url, err := pc.Ledger.ReceiptURL(c.Request.Context(), c.Param("id"), expiry)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int(expiry.Seconds())})
}

func (pc *PaymentController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
