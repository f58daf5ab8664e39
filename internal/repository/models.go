package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"mailroom/internal/domain"
)

// JSONMap stores a flat string map as a jsonb column.
type JSONMap map[string]string

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}

	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// EmailQueueModel is the persistence model for the email_queue table.
type EmailQueueModel struct {
	ID           string             `gorm:"type:uuid;primaryKey"`
	ToEmail      string             `gorm:"type:varchar(255);not null"`
	ToName       string             `gorm:"type:varchar(255)"`
	TemplateSlug *string            `gorm:"type:varchar(100)"`
	Subject      *string            `gorm:"type:text"`
	Data         JSONMap            `gorm:"type:jsonb"`
	StoreID      string             `gorm:"type:uuid;not null"`
	CustomerID   *string            `gorm:"type:uuid"`
	OrderID      *string            `gorm:"type:uuid"`
	Category     string             `gorm:"type:varchar(50);not null"`
	Attempts     int                `gorm:"not null;default:0"`
	MaxAttempts  int                `gorm:"not null;default:3"`
	Status       domain.QueueStatus `gorm:"type:varchar(20);not null;default:pending"`
	LastError    *string            `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
}

func (EmailQueueModel) TableName() string {
	return "email_queue"
}

// EmailLedgerModel is the persistence model for email_ledger.
type EmailLedgerModel struct {
	ID                string              `gorm:"type:uuid;primaryKey"`
	StoreID           string              `gorm:"type:uuid;not null"`
	CustomerID        *string             `gorm:"type:uuid"`
	OrderID           *string             `gorm:"type:uuid"`
	Recipient         string              `gorm:"type:varchar(255);not null"`
	FromEmail         string              `gorm:"type:varchar(255);not null"`
	Subject           string              `gorm:"type:text;not null"`
	Category          string              `gorm:"type:varchar(50);not null"`
	Status            domain.LedgerStatus `gorm:"type:varchar(20);not null;default:pending"`
	ProviderMessageID string              `gorm:"type:varchar(255);not null"`
	SentAt            *time.Time
	DeliveredAt       *time.Time
	OpenedAt          *time.Time
	ClickedAt         *time.Time
	BouncedAt         *time.Time
	ComplainedAt      *time.Time
	Metadata          JSONMap `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (EmailLedgerModel) TableName() string {
	return "email_ledger"
}

// BulkSendModel is the persistence model for bulk_sends.
type BulkSendModel struct {
	ID                string              `gorm:"type:uuid;primaryKey"`
	CampaignID        string              `gorm:"type:uuid;not null"`
	Recipient         string              `gorm:"type:varchar(255);not null"`
	Status            domain.LedgerStatus `gorm:"type:varchar(20);not null;default:pending"`
	ProviderMessageID string              `gorm:"type:varchar(255);not null"`
	ClickCount        int                 `gorm:"not null;default:0"`
	SentAt            *time.Time
	DeliveredAt       *time.Time
	OpenedAt          *time.Time
	ClickedAt         *time.Time
	BouncedAt         *time.Time
	ComplainedAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (BulkSendModel) TableName() string {
	return "bulk_sends"
}

// EmailEventModel is the persistence model for email_events.
type EmailEventModel struct {
	ID         string           `gorm:"type:uuid;primaryKey"`
	LedgerID   string           `gorm:"type:uuid;not null"`
	Type       domain.EventType `gorm:"type:varchar(20);not null"`
	RawPayload []byte           `gorm:"type:jsonb"`
	UserAgent  *string          `gorm:"type:text"`
	IPAddress  *string          `gorm:"type:varchar(45)"`
	ClickedURL *string          `gorm:"type:text"`
	CreatedAt  time.Time
}

func (EmailEventModel) TableName() string {
	return "email_events"
}

// EmailTemplateModel is the persistence model for email_templates.
type EmailTemplateModel struct {
	ID       string  `gorm:"type:uuid;primaryKey"`
	Slug     string  `gorm:"type:varchar(100);not null"`
	StoreID  *string `gorm:"type:uuid"`
	Active   bool    `gorm:"not null;default:true"`
	Subject  string  `gorm:"type:text;not null"`
	HTMLBody string  `gorm:"column:html_body;type:text"`
	TextBody string  `gorm:"column:text_body;type:text"`
}

func (EmailTemplateModel) TableName() string {
	return "email_templates"
}

// StoreModel is the persistence model for stores.
type StoreModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Name         string `gorm:"type:varchar(255);not null"`
	ContactEmail string `gorm:"type:varchar(255)"`
}

func (StoreModel) TableName() string {
	return "stores"
}

// StoreEmailSettingsModel is the persistence model for store_email_settings.
type StoreEmailSettingsModel struct {
	StoreID   string `gorm:"type:uuid;primaryKey"`
	FromName  string `gorm:"type:varchar(255)"`
	FromEmail string `gorm:"type:varchar(255)"`
	ReplyTo   string `gorm:"type:varchar(255)"`
}

func (StoreEmailSettingsModel) TableName() string {
	return "store_email_settings"
}

func queueModelFromDomain(q *domain.QueueItem) *EmailQueueModel {
	if q == nil {
		return nil
	}

	return &EmailQueueModel{
		ID:           q.ID,
		ToEmail:      q.ToEmail,
		ToName:       q.ToName,
		TemplateSlug: q.TemplateSlug,
		Subject:      q.Subject,
		Data:         JSONMap(q.Data),
		StoreID:      q.StoreID,
		CustomerID:   q.CustomerID,
		OrderID:      q.OrderID,
		Category:     q.Category,
		Attempts:     q.Attempts,
		MaxAttempts:  q.MaxAttempts,
		Status:       q.Status,
		LastError:    q.LastError,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
		ProcessedAt:  q.ProcessedAt,
	}
}

func queueModelToDomain(m *EmailQueueModel) *domain.QueueItem {
	if m == nil {
		return nil
	}

	return &domain.QueueItem{
		ID:           m.ID,
		ToEmail:      m.ToEmail,
		ToName:       m.ToName,
		TemplateSlug: m.TemplateSlug,
		Subject:      m.Subject,
		Data:         map[string]string(m.Data),
		StoreID:      m.StoreID,
		CustomerID:   m.CustomerID,
		OrderID:      m.OrderID,
		Category:     m.Category,
		Attempts:     m.Attempts,
		MaxAttempts:  m.MaxAttempts,
		Status:       m.Status,
		LastError:    m.LastError,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		ProcessedAt:  m.ProcessedAt,
	}
}

func ledgerModelFromDomain(r *domain.LedgerRecord) *EmailLedgerModel {
	if r == nil {
		return nil
	}

	return &EmailLedgerModel{
		ID:                r.ID,
		StoreID:           r.StoreID,
		CustomerID:        r.CustomerID,
		OrderID:           r.OrderID,
		Recipient:         r.Recipient,
		FromEmail:         r.FromEmail,
		Subject:           r.Subject,
		Category:          r.Category,
		Status:            r.Status,
		ProviderMessageID: r.ProviderMessageID,
		SentAt:            r.SentAt,
		DeliveredAt:       r.DeliveredAt,
		OpenedAt:          r.OpenedAt,
		ClickedAt:         r.ClickedAt,
		BouncedAt:         r.BouncedAt,
		ComplainedAt:      r.ComplainedAt,
		Metadata:          JSONMap(r.Metadata),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func ledgerModelToDomain(m *EmailLedgerModel) *domain.LedgerRecord {
	if m == nil {
		return nil
	}

	return &domain.LedgerRecord{
		ID:                m.ID,
		StoreID:           m.StoreID,
		CustomerID:        m.CustomerID,
		OrderID:           m.OrderID,
		Recipient:         m.Recipient,
		FromEmail:         m.FromEmail,
		Subject:           m.Subject,
		Category:          m.Category,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		OpenedAt:          m.OpenedAt,
		ClickedAt:         m.ClickedAt,
		BouncedAt:         m.BouncedAt,
		ComplainedAt:      m.ComplainedAt,
		Metadata:          map[string]string(m.Metadata),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func bulkModelToDomain(m *BulkSendModel) *domain.BulkSendRecord {
	if m == nil {
		return nil
	}

	return &domain.BulkSendRecord{
		ID:                m.ID,
		CampaignID:        m.CampaignID,
		Recipient:         m.Recipient,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		ClickCount:        m.ClickCount,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		OpenedAt:          m.OpenedAt,
		ClickedAt:         m.ClickedAt,
		BouncedAt:         m.BouncedAt,
		ComplainedAt:      m.ComplainedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func eventModelFromDomain(e *domain.EmailEvent) *EmailEventModel {
	if e == nil {
		return nil
	}

	return &EmailEventModel{
		ID:         e.ID,
		LedgerID:   e.LedgerID,
		Type:       e.Type,
		RawPayload: e.RawPayload,
		UserAgent:  e.UserAgent,
		IPAddress:  e.IPAddress,
		ClickedURL: e.ClickedURL,
		CreatedAt:  e.CreatedAt,
	}
}

func templateModelToDomain(m *EmailTemplateModel) *domain.EmailTemplate {
	if m == nil {
		return nil
	}

	return &domain.EmailTemplate{
		ID:       m.ID,
		Slug:     m.Slug,
		StoreID:  m.StoreID,
		Active:   m.Active,
		Subject:  m.Subject,
		HTMLBody: m.HTMLBody,
		TextBody: m.TextBody,
	}
}
