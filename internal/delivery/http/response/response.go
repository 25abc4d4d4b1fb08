package response

import (
	"time"

	"github.com/user/price-tracker/internal/entity"
)

type RunAcceptedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// HealthResponse reports each dependency as "ok" or its error text.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ProductResponse struct {
	ProductID string  `json:"product_id"`
	Name      *string `json:"name,omitempty"`
	Brand     *string `json:"brand,omitempty"`
	ImageURL  *string `json:"image_url,omitempty"`
	URL       *string `json:"url,omitempty"`
}

func NewProductResponse(m *entity.ProductMaster) ProductResponse {
	return ProductResponse{
		ProductID: m.ProductID,
		Name:      m.Name,
		Brand:     m.Brand,
		ImageURL:  m.ImageURL,
		URL:       m.URL,
	}
}

type FailedProductResponse struct {
	ProductID           string    `json:"product_id"`
	URL                 string    `json:"url"`
	FailureReason       string    `json:"failure_reason"`
	Attempts            int       `json:"attempts"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastAttempt         time.Time `json:"last_attempt"`
}

type FailedProductsResponse struct {
	Count    int                     `json:"count"`
	Products []FailedProductResponse `json:"products"`
}

func NewFailedProductsResponse(failed []*entity.FailedProduct) FailedProductsResponse {
	resp := FailedProductsResponse{Count: len(failed), Products: make([]FailedProductResponse, 0, len(failed))}
	for _, f := range failed {
		resp.Products = append(resp.Products, FailedProductResponse{
			ProductID:           f.ProductID,
			URL:                 f.URL,
			FailureReason:       f.FailureReason,
			Attempts:            f.Attempts,
			ConsecutiveFailures: f.ConsecutiveFailures,
			LastAttempt:         f.LastAttemptTimestamp,
		})
	}
	return resp
}
