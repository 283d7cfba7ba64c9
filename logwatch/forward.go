package logwatch

import (
	"regexp"
	"strings"
	"time"

	"github.com/phuslu/log"
	"gorm.io/gorm"
)

// Forwarder ships critical and warning lines of every batch to the event
// console as RFC5424 syslog records. Deliveries are journaled in sqlite so
// a line that could not be sent is retried on the next run. Forwarding is
// strictly best-effort: it never influences the agent's stdout output.
type Forwarder struct {
	db     *gorm.DB
	syslog SyslogSender
	remote string
	logger log.Logger
}

func NewForwarder(journalPath, addr, remote string, logger log.Logger) (*Forwarder, error) {
	db, err := OpenJournal(journalPath)
	if err != nil {
		return nil, err
	}
	return &Forwarder{
		db:     db,
		syslog: NewSyslogClient(addr),
		remote: remote,
		logger: logger,
	}, nil
}

func (f *Forwarder) Close() error {
	sqlDB, err := f.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

var sectionHeaderRe = regexp.MustCompile(`^\[\[\[(.+)\]\]\]$`)

// collectForwardable extracts the (section, level, text) triples worth
// forwarding from one batch's formatted output lines.
func collectForwardable(batchID string, lines []string) []ForwardedMessage {
	var msgs []ForwardedMessage
	section := ""
	for _, raw := range lines {
		line := ansiRe.ReplaceAllString(strings.TrimSuffix(raw, "\n"), "")
		if m := sectionHeaderRe.FindStringSubmatch(line); m != nil {
			section = m[1]
			if strings.HasSuffix(section, ":missing") || strings.HasSuffix(section, ":cannotopen") {
				section = ""
			}
			continue
		}
		if strings.HasPrefix(line, "BATCH: ") || section == "" {
			continue
		}
		level, text, found := strings.Cut(line, " ")
		if !found || (level != LevelCritical && level != LevelWarning) {
			continue
		}
		msgs = append(msgs, ForwardedMessage{
			BatchID: batchID,
			Seq:     len(msgs),
			Section: section,
			Level:   level,
			Text:    strings.ReplaceAll(text, continuationMarker, " "),
		})
	}
	return msgs
}

var sdKeys = []string{"remote", "section", "level", "batch"}

func (f *Forwarder) send(msg *ForwardedMessage, timeout time.Duration) error {
	structured := buildStructuredData("logwatch", sdKeys, map[string]string{
		"remote":  f.remote,
		"section": msg.Section,
		"level":   msg.Level,
		"batch":   msg.BatchID,
	})
	return f.syslog.Send("mk-logwatch", structured, msg.Text, timeout)
}

// ForwardBatch journals the batch's critical/warning lines and sends them.
// Lines that fail to send stay unsent in the journal for the next run.
func (f *Forwarder) ForwardBatch(batchID string, lines []string, timeout time.Duration) error {
	msgs := collectForwardable(batchID, lines)

	now := time.Now().UTC()
	batch := ForwardedBatch{
		BatchID:   batchID,
		Remote:    f.remote,
		LineCount: len(msgs),
		CreatedAt: now,
	}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		for i := range msgs {
			msgs[i].CreatedAt = now
		}
		return tx.Create(&msgs).Error
	})
	if err != nil {
		return err
	}

	allSent := true
	for i := range msgs {
		if err := f.send(&msgs[i], timeout); err != nil {
			f.logger.Debug().Err(err).Str("batch", batchID).Int("seq", msgs[i].Seq).Msg("forward failed")
			allSent = false
			_ = f.db.Model(&ForwardedMessage{}).
				Where("id = ?", msgs[i].ID).
				Updates(map[string]any{"send_error": err.Error()}).Error
			continue
		}
		sentAt := time.Now().UTC()
		_ = f.db.Model(&ForwardedMessage{}).
			Where("id = ?", msgs[i].ID).
			Updates(map[string]any{"sent": true, "send_error": "", "sent_at": &sentAt}).Error
	}
	if allSent {
		_ = f.db.Model(&ForwardedBatch{}).
			Where("batch_id = ?", batchID).
			Update("all_sent", true).Error
	}
	return nil
}

// ResendPending retries every journaled message that has not been delivered
// yet, oldest first.
func (f *Forwarder) ResendPending(timeout time.Duration) error {
	var pending []ForwardedMessage
	if err := f.db.Where("sent = ?", false).Order("id asc").Find(&pending).Error; err != nil {
		return err
	}
	for i := range pending {
		if err := f.send(&pending[i], timeout); err != nil {
			f.logger.Debug().Err(err).Str("batch", pending[i].BatchID).Msg("resend failed")
			_ = f.db.Model(&ForwardedMessage{}).
				Where("id = ?", pending[i].ID).
				Updates(map[string]any{"send_error": err.Error()}).Error
			continue
		}
		sentAt := time.Now().UTC()
		_ = f.db.Model(&ForwardedMessage{}).
			Where("id = ?", pending[i].ID).
			Updates(map[string]any{"sent": true, "send_error": "", "sent_at": &sentAt}).Error
	}
	return f.finalizeBatches()
}

// finalizeBatches marks batches whose messages have all been delivered.
func (f *Forwarder) finalizeBatches() error {
	var batches []ForwardedBatch
	if err := f.db.Where("all_sent = ?", false).Find(&batches).Error; err != nil {
		return err
	}
	for _, b := range batches {
		var unsent int64
		if err := f.db.Model(&ForwardedMessage{}).
			Where("batch_id = ? AND sent = ?", b.BatchID, false).
			Count(&unsent).Error; err != nil {
			continue
		}
		if unsent == 0 {
			_ = f.db.Model(&ForwardedBatch{}).
				Where("id = ?", b.ID).
				Update("all_sent", true).Error
		}
	}
	return nil
}
