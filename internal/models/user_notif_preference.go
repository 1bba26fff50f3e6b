package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationChannel string

const (
	NotificationChannelEmail    NotificationChannel = "email"
	NotificationChannelWhatsapp NotificationChannel = "whatsapp"
	NotificationChannelNone     NotificationChannel = "none"
)

const (
	WhatsappTargetTypePersonal = "personal"
	WhatsappTargetTypeGroup    = "group"
)

// UserNotifPreference says how a user wants squad reminders delivered. Users
// are keyed by their auth provider id.
type UserNotifPreference struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID string `gorm:"type:varchar(128);uniqueIndex" json:"user_id"`

	Channel NotificationChannel `gorm:"type:varchar(20);default:'none'" json:"channel"`
	Email   string              `gorm:"type:varchar(255)" json:"email"`
	Phone   string              `gorm:"type:varchar(32)" json:"phone"`

	// WhatsApp specific options
	WhatsappTargetType string `gorm:"type:varchar(20);default:'personal'" json:"whatsapp_target_type"` // 'personal' or 'group'
	WhatsappGroupID    string `gorm:"type:varchar(100)" json:"whatsapp_group_id"`                      // Group ID if target type is group
}

// DefaultNotifPreference stands in for users who never saved a preference.
// Reminders stay off until they pick a channel; the email is only a prefill.
func DefaultNotifPreference(userID, email string) UserNotifPreference {
	return UserNotifPreference{
		UserID:             userID,
		Channel:            NotificationChannelNone,
		Email:              email,
		WhatsappTargetType: WhatsappTargetTypePersonal,
	}
}

// Validate checks the channel-specific fields.
func (p UserNotifPreference) Validate() error {
	switch p.Channel {
	case NotificationChannelNone:
		return nil
	case NotificationChannelEmail:
		if p.Email == "" {
			return errMissing("email")
		}
	case NotificationChannelWhatsapp:
		switch p.WhatsappTargetType {
		case WhatsappTargetTypePersonal:
			if p.Phone == "" {
				return errMissing("phone")
			}
		case WhatsappTargetTypeGroup:
			if p.WhatsappGroupID == "" {
				return errMissing("whatsapp_group_id")
			}
		default:
			return &PreferenceError{Field: "whatsapp_target_type", Reason: "must be personal or group"}
		}
	default:
		return &PreferenceError{Field: "channel", Reason: "must be email, whatsapp or none"}
	}
	return nil
}

// WhatsappChatID is the WAHA chat id the preference targets.
func (p UserNotifPreference) WhatsappChatID() string {
	if p.WhatsappTargetType == WhatsappTargetTypeGroup {
		return p.WhatsappGroupID + "@g.us"
	}
	return p.Phone + "@c.us"
}

// PreferenceError names the offending field of a notification preference
type PreferenceError struct {
	Field  string
	Reason string
}

func (e *PreferenceError) Error() string {
	return e.Field + " " + e.Reason
}

func errMissing(field string) error {
	return &PreferenceError{Field: field, Reason: "is required"}
}
