package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestNextDue(t *testing.T) {
	due := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC) // Saturday
	weekly := ScheduledTask{
		Due:               due,
		TaskType:          ScheduledTaskTypeRecurring,
		RecurringInterval: strPtr("FREQ=WEEKLY"),
	}

	assert.Equal(t, due.AddDate(0, 0, 7), weekly.NextDue(due))
	assert.Equal(t, due.AddDate(0, 0, 14), weekly.NextDue(due.AddDate(0, 0, 8)))

	oneTime := ScheduledTask{Due: due, TaskType: ScheduledTaskTypeOneTime}
	assert.Equal(t, due, oneTime.NextDue(due.AddDate(1, 0, 0)))

	broken := weekly
	broken.RecurringInterval = strPtr("EVERY SATURDAY")
	assert.Equal(t, due, broken.NextDue(due))

	exhausted := weekly
	exhausted.RecurringInterval = strPtr("FREQ=DAILY;COUNT=1")
	assert.Equal(t, due, exhausted.NextDue(due))
}

func TestScheduledTaskValidate(t *testing.T) {
	valid := ScheduledTask{
		TaskName:   "log_squad_summary",
		Due:        time.Now(),
		TaskType:   ScheduledTaskTypeOneTime,
		MaxAttempt: 3,
	}
	assert.NoError(t, valid.Validate())

	recurring := valid
	recurring.TaskType = ScheduledTaskTypeRecurring
	assert.Error(t, recurring.Validate())
	recurring.RecurringInterval = strPtr("FREQ=WEEKLY;BYDAY=SA")
	assert.NoError(t, recurring.Validate())

	unknown := valid
	unknown.TaskType = "sometimes"
	assert.Error(t, unknown.Validate())

	noAttempts := valid
	noAttempts.MaxAttempt = 0
	assert.Error(t, noAttempts.Validate())
}

func TestNotifPreferenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		pref    UserNotifPreference
		wantErr string
	}{
		{"email ok", UserNotifPreference{Channel: NotificationChannelEmail, Email: "a@b.c"}, ""},
		{"email missing", UserNotifPreference{Channel: NotificationChannelEmail}, "email is required"},
		{"whatsapp personal", UserNotifPreference{Channel: NotificationChannelWhatsapp, WhatsappTargetType: WhatsappTargetTypePersonal, Phone: "0812"}, ""},
		{"whatsapp group missing id", UserNotifPreference{Channel: NotificationChannelWhatsapp, WhatsappTargetType: WhatsappTargetTypeGroup}, "whatsapp_group_id is required"},
		{"none", UserNotifPreference{Channel: NotificationChannelNone}, ""},
		{"unknown channel", UserNotifPreference{Channel: "pigeon"}, "channel must be email, whatsapp or none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pref.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestWhatsappChatID(t *testing.T) {
	assert.Equal(t, "123@g.us", UserNotifPreference{WhatsappTargetType: WhatsappTargetTypeGroup, WhatsappGroupID: "123"}.WhatsappChatID())
	assert.Equal(t, "0812@c.us", UserNotifPreference{WhatsappTargetType: WhatsappTargetTypePersonal, Phone: "0812"}.WhatsappChatID())
}
