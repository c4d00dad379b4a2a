package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"steamwatch/internal/notify"
	"steamwatch/internal/storage"
	logx "steamwatch/pkg/logx"
)

const notifyGroupUsage = "❌ Usage: /notify_group <add|remove|list> [group_id] [only_game=true] [friends=id1,id2] [mute=23:00-07:00]"

// NotifyGroup manages group mirroring preferences. `add` replaces the
// whole record for that group; options are not merged into an existing one.
func (s *Service) NotifyGroup(ctx context.Context, userID int64, args []string) string {
	if len(args) < 1 {
		return notifyGroupUsage
	}
	switch strings.ToLower(args[0]) {
	case "list":
		return s.listGroupPrefs(ctx, userID)
	case "add", "remove":
	default:
		return notifyGroupUsage
	}
	if len(args) < 2 {
		return notifyGroupUsage
	}
	groupID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "❌ group_id must be a number"
	}

	if strings.ToLower(args[0]) == "remove" {
		if err := s.store.DeleteGroupPref(ctx, userID, groupID); err != nil {
			s.log.Error("group pref delete failed", logx.Int64("user", userID), logx.Err(err))
			return "❌ Could not remove the group, try again later"
		}
		return fmt.Sprintf("✅ Group %d removed from notifications", groupID)
	}

	pref := storage.GroupPref{UserID: userID, GroupID: groupID}
	for _, opt := range args[2:] {
		k, v, _ := strings.Cut(opt, "=")
		switch strings.ToLower(k) {
		case "only_game":
			pref.OnlyGame = strings.EqualFold(v, "true") || v == "1"
		case "friends":
			for _, id := range strings.Split(v, ",") {
				if id = strings.TrimSpace(id); id != "" {
					pref.Friends = append(pref.Friends, id)
				}
			}
		case "mute":
			if _, err := notify.ParseQuietSpan(v); err != nil {
				return fmt.Sprintf("❌ Bad mute window %q, want HH:MM-HH:MM", v)
			}
			pref.Quiet = append(pref.Quiet, v)
		default:
			return fmt.Sprintf("❌ Unknown option %q", opt)
		}
	}
	if err := s.store.SetGroupPref(ctx, pref); err != nil {
		s.log.Error("group pref save failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not save the group preference, try again later"
	}
	return fmt.Sprintf("✅ Group %d will receive friend notifications", groupID)
}

func (s *Service) listGroupPrefs(ctx context.Context, userID int64) string {
	prefs, err := s.store.GroupPrefs(ctx, userID)
	if err != nil {
		s.log.Error("group pref list failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not load group preferences"
	}
	if len(prefs) == 0 {
		return "No notification groups configured"
	}
	var b strings.Builder
	b.WriteString("Notification groups:\n")
	for _, p := range prefs {
		fmt.Fprintf(&b, "• %d", p.GroupID)
		if p.OnlyGame {
			b.WriteString(" [game events only]")
		}
		if len(p.Friends) > 0 {
			fmt.Fprintf(&b, " [%d friends]", len(p.Friends))
		}
		for _, q := range p.Quiet {
			fmt.Fprintf(&b, " [mute %s]", q)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
