// Package scheduler runs the 30-second tick that drives proactive
// replies, auto-unsubscribe and reminder firing.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chris/nudge/config"
	"github.com/chris/nudge/internal/clock"
	"github.com/chris/nudge/internal/host"
	"github.com/chris/nudge/internal/remind"
	"github.com/chris/nudge/internal/state"
)

// Replier attempts one proactive reply for a session and reports
// whether a message was delivered.
type Replier interface {
	Reply(ctx context.Context, umo string, histN int, tzName string) bool
}

type Scheduler struct {
	cron      *cron.Cron
	states    *state.Store
	reminders *remind.Store
	settings  *config.SettingsStore
	replier   Replier
	sender    host.Sender

	// runMu serializes ticks. A reply attempt is a synchronous provider
	// call that can outlast the 30s period, and a second tick reading
	// last_fired_tag mid-attempt would fire the same tag twice.
	runMu sync.Mutex

	// now is swappable so tests can drive simulated time.
	now func(tzName string) time.Time

	// firedDaily maps reminder id to the minute it last fired. Daily
	// reminders match on hour:minute while ticks run every 30s, so
	// without this guard each match would deliver twice.
	firedDaily map[string]string
}

func New(states *state.Store, reminders *remind.Store, settings *config.SettingsStore, replier Replier, sender host.Sender) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		states:     states,
		reminders:  reminders,
		settings:   settings,
		replier:    replier,
		sender:     sender,
		now:        clock.Now,
		firedDaily: make(map[string]string),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 30s", func() { s.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("registering tick: %w", err)
	}
	s.cron.Start()
	log.Println("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Tick evaluates every subscribed session against the idle and daily
// rules, then the reminder set, and persists session state. One tick is
// one indivisible step: ticks never interleave, and the cron recover
// chain keeps a panicking tick from killing the loop.
func (s *Scheduler) Tick(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	cfg := s.settings.Get()
	if !cfg.Enable {
		return
	}

	now := s.now(cfg.Timezone)
	histN := cfg.HistoryDepth
	if histN <= 0 {
		histN = 8
	}

	t1, t2 := dailyTimes(cfg.Daily)
	today := now.Format("2006-01-02")
	minute := now.Format("15:04")

	idleTag := "idle@" + today + " " + minute
	var tag1, tag2 string
	if t1 != "" {
		tag1 = "daily1@" + today + " " + t1
	}
	if t2 != "" {
		tag2 = "daily2@" + today + " " + t2
	}

	for _, umo := range s.states.Subscribed() {
		s.runSession(ctx, umo, cfg, now, histN, idleTag, t1, tag1, t2, tag2, minute)
	}

	s.checkReminders(now)

	if err := s.states.Save(); err != nil {
		log.Printf("scheduler: persisting state: %v", err)
	}
}

// runSession applies quiet hours, auto-unsubscribe and the three
// independent triggers to one session. A panic here is contained so a
// bad session never halts the others.
func (s *Scheduler) runSession(ctx context.Context, umo string, cfg config.Settings, now time.Time, histN int, idleTag, t1, tag1, t2, tag2, minute string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler[%s]: recovered: %v", umo, r)
		}
	}()

	if clock.InQuietHours(now, cfg.QuietHours) {
		return
	}

	sess, ok := s.states.Get(umo)
	if !ok {
		return
	}
	if s.autoUnsubscribe(umo, sess, cfg, now) {
		return
	}

	nowTS := float64(now.UnixNano()) / float64(time.Second)

	if cfg.AfterLastMsgMin > 0 && sess.LastTS > 0 &&
		nowTS-sess.LastTS >= float64(cfg.AfterLastMsgMin)*60 &&
		sess.LastFiredTag != idleTag {
		s.fire(ctx, umo, histN, cfg.Timezone, idleTag)
		sess, _ = s.states.Get(umo)
	}

	if tag1 != "" && minute == t1 && sess.LastFiredTag != tag1 {
		s.fire(ctx, umo, histN, cfg.Timezone, tag1)
		sess, _ = s.states.Get(umo)
	}
	if tag2 != "" && minute == t2 && sess.LastFiredTag != tag2 {
		s.fire(ctx, umo, histN, cfg.Timezone, tag2)
	}
}

// fire attempts one proactive reply. The tag only advances on success
// so a failed attempt is retried on the next tick.
func (s *Scheduler) fire(ctx context.Context, umo string, histN int, tzName, tag string) {
	if s.replier.Reply(ctx, umo, histN, tzName) {
		s.states.SetFiredTag(umo, tag)
	} else {
		s.states.BumpNoReply(umo)
	}
}

// autoUnsubscribe applies the whole-day no-reply policy and reports
// whether the session was unsubscribed this tick.
func (s *Scheduler) autoUnsubscribe(umo string, sess state.Session, cfg config.Settings, now time.Time) bool {
	if cfg.MaxNoReplyDays <= 0 || sess.LastUserReplyTS <= 0 {
		return false
	}
	nowTS := float64(now.UnixNano()) / float64(time.Second)
	days := int((nowTS - sess.LastUserReplyTS) / 86400)
	if days < cfg.MaxNoReplyDays {
		return false
	}
	s.states.SetSubscribed(umo, false)
	log.Printf("scheduler[%s]: no user reply for %d day(s), unsubscribed", umo, days)
	return true
}

// checkReminders fires due reminders. One-shots are removed after
// firing and the removal persisted; daily reminders stay and are
// deduplicated per minute in memory.
func (s *Scheduler) checkReminders(now time.Time) {
	stamp := now.Format("2006-01-02 15:04")
	changed := false

	for _, r := range s.reminders.All() {
		if hhmm, daily := r.Daily(); daily {
			// Parse rather than string-compare so non-canonical stored
			// times like "9:05" still match.
			h, m, ok := clock.ParseHHMM(hhmm)
			if !ok || h != now.Hour() || m != now.Minute() || s.firedDaily[r.ID] == stamp {
				continue
			}
			s.deliverReminder(r)
			s.firedDaily[r.ID] = stamp
			continue
		}
		if r.At != stamp {
			continue
		}
		s.deliverReminder(r)
		s.reminders.Remove(r.ID)
		delete(s.firedDaily, r.ID)
		changed = true
	}

	if changed {
		if err := s.reminders.Save(); err != nil {
			log.Printf("scheduler: persisting reminders: %v", err)
		}
	}
}

func (s *Scheduler) deliverReminder(r remind.Reminder) {
	if err := s.sender.SendText(r.UMO, "⏰ Reminder: "+r.Content); err != nil {
		log.Printf("scheduler: reminder %s: send: %v", r.ID, err)
		return
	}
	log.Printf("scheduler: fired reminder %s", r.ID)
}

// dailyTimes canonicalizes the two configured fire times to "HH:MM".
// When both are set to the same minute the second is nudged forward by
// one minute, with hour rollover, so the slots never collide.
func dailyTimes(d config.Daily) (t1, t2 string) {
	t1 = canonHHMM(d.Time1)
	t2 = canonHHMM(d.Time2)
	if t1 != "" && t1 == t2 {
		h, m, _ := clock.ParseHHMM(t2)
		m++
		if m == 60 {
			m = 0
			h = (h + 1) % 24
		}
		t2 = fmt.Sprintf("%02d:%02d", h, m)
	}
	return t1, t2
}

func canonHHMM(s string) string {
	h, m, ok := clock.ParseHHMM(s)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}
