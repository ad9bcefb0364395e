package app

import (
	"errors"
	"testing"

	"threebr/pkg/feed"
)

func TestToggleLikeFlipsAndCounts(t *testing.T) {
	a, _ := newTestApp(t)
	ana, err := a.SignUp("ana@example.com", "readerpass1", "Ana", "ana")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	set, err := a.SubmitRecSet(ana.User.ID, flowAtTags(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	liked, count, err := a.ToggleLike(ana.User.ID, set.ID)
	if err != nil || !liked || count != 1 {
		t.Fatalf("first toggle: liked=%v count=%d err=%v", liked, count, err)
	}
	liked, count, err = a.ToggleLike(ana.User.ID, set.ID)
	if err != nil || liked || count != 0 {
		t.Fatalf("second toggle: liked=%v count=%d err=%v", liked, count, err)
	}
}

func TestFollowValidation(t *testing.T) {
	a, _ := newTestApp(t)
	ana, _ := a.SignUp("ana@example.com", "readerpass1", "Ana", "ana")
	ben, _ := a.SignUp("ben@example.com", "readerpass1", "Ben", "ben")

	if err := a.Follow(ana.User.ID, ana.User.ID); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("self-follow: got %v, want ErrSelfFollow", err)
	}
	if err := a.Follow(ana.User.ID, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("follow of missing profile: %v", err)
	}
	if err := a.Follow(ana.User.ID, ben.User.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}

	view, err := a.GetProfileView(ana.User.ID, ben.User.ID)
	if err != nil {
		t.Fatalf("profile view: %v", err)
	}
	if !view.Following || view.FollowerCount != 1 {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestHomeTimelineMergesRecSetsAndActivities(t *testing.T) {
	a, _ := newTestApp(t)
	ana, err := a.SignUp("ana@example.com", "readerpass1", "Ana", "ana")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := a.SubmitRecSet(ana.User.ID, flowAtTags(t)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	items, err := a.HomeTimeline()
	if err != nil {
		t.Fatalf("home timeline: %v", err)
	}
	var haveSet, haveJoined, haveShelved bool
	for _, item := range items {
		switch item.Kind {
		case feed.KindRecSet:
			haveSet = true
		case feed.KindActivity:
			switch item.Activity.Type {
			case "joined":
				haveJoined = true
			case "shelved":
				haveShelved = true
			}
		}
	}
	if !haveSet || !haveJoined || !haveShelved {
		t.Fatalf("timeline missing kinds: set=%v joined=%v shelved=%v", haveSet, haveJoined, haveShelved)
	}
}
