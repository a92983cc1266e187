package player

import "time"

// NoticeKind classifies the transient user-visible messages
type NoticeKind string

const (
	InvalidAudioSource NoticeKind = "invalid_audio_source"
	PlaybackRejected   NoticeKind = "playback_rejected"
	AutoplayBlocked    NoticeKind = "autoplay_blocked"
	MediaElementError  NoticeKind = "media_element_error"
)

// Notice is a message that clears itself after a fixed interval
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	ShownAt time.Time  `json:"shownAt"`
}

// showNoticeLocked replaces any visible notice and restarts the clear timer
// (must be called with lock held)
func (m *Machine) showNoticeLocked(kind NoticeKind, message string) {
	if m.noticeTimer != nil {
		m.noticeTimer.Stop()
	}
	m.noticeSeq++
	seq := m.noticeSeq

	m.notice = &Notice{
		Kind:    kind,
		Message: message,
		ShownAt: m.clock.Now(),
	}
	m.logger.WithField("kind", kind).Warn(message)

	m.noticeTimer = m.clock.AfterFunc(m.opts.NoticeDuration, func() {
		m.clearNotice(seq)
	})
}

// clearNotice hides the notice unless a newer one replaced it
func (m *Machine) clearNotice(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.noticeSeq || m.notice == nil {
		return
	}
	m.notice = nil
	m.noticeTimer = nil
	m.notifyLocked()
}
