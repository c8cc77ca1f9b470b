package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type AskParams struct {
	Question string `json:"question" validate:"required"`
}

type GeneralChatParams struct {
	Question string `json:"question" validate:"required"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *AskParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *GeneralChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type UploadResponse struct {
	Message      string `json:"message"`
	RecordID     int64  `json:"record_id"`
	BlockchainTx string `json:"blockchain_tx,omitempty"`
	TextLength   int    `json:"text_length"`
	HashValue    string `json:"hash_value,omitempty"`
}

type AskResponse struct {
	Query              string  `json:"query"`
	Response           string  `json:"response"`
	Confidence         float64 `json:"confidence"`
	BlockchainVerified bool    `json:"blockchain_verified"`
	RecordHash         string  `json:"record_hash,omitempty"`
}

type RecordResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	UploadDate   time.Time `json:"upload_date"`
	Verified     bool      `json:"verified"`
	Content      string    `json:"content"`
	BlockchainTx string    `json:"blockchain_tx,omitempty"`
}

type SimilarRecord struct {
	ID         int64     `json:"id"`
	OwnerLabel string    `json:"owner"`
	Similarity float64   `json:"similarity"`
	UploadDate time.Time `json:"upload_date"`
}

type DashboardResponse struct {
	Owner           string           `json:"owner"`
	TotalRecords    int              `json:"total_records"`
	AnchoredRecords int              `json:"anchored_records"`
	LastUpload      *time.Time       `json:"last_upload,omitempty"`
	RecentRecords   []RecordResponse `json:"recent_records"`
}

type HealthResponse struct {
	Status              string    `json:"status"`
	BlockchainConnected bool      `json:"blockchain_connected"`
	CurrentBlock        uint64    `json:"current_block,omitempty"`
	WalletBalance       string    `json:"wallet_balance,omitempty"`
	BlockchainError     string    `json:"blockchain_error,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}
