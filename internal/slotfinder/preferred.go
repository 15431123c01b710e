package slotfinder

import "github.com/glebk/wellness-bot/internal/domain"

type clockTime struct {
	hour, minute int
}

// preferredWindow is a stretch of the day that suits an activity, with the
// time we would pick first inside it.
type preferredWindow struct {
	from, to clockTime
	anchor   clockTime
}

// preferredHours is consulted only when the user has no meetings left today.
var preferredHours = map[domain.ActivityType][]preferredWindow{
	domain.ActivityWalk: {
		{from: clockTime{10, 0}, to: clockTime{12, 0}, anchor: clockTime{10, 30}},
		{from: clockTime{12, 0}, to: clockTime{16, 0}, anchor: clockTime{14, 0}},
	},
	domain.ActivityLunch: {
		{from: clockTime{11, 30}, to: clockTime{13, 30}, anchor: clockTime{12, 0}},
		{from: clockTime{11, 30}, to: clockTime{13, 30}, anchor: clockTime{11, 30}},
	},
	domain.ActivityCoffee: {
		{from: clockTime{10, 0}, to: clockTime{11, 0}, anchor: clockTime{10, 0}},
		{from: clockTime{14, 0}, to: clockTime{16, 0}, anchor: clockTime{14, 30}},
	},
	domain.ActivityStretch: {
		{from: clockTime{9, 0}, to: clockTime{12, 0}, anchor: clockTime{11, 0}},
		{from: clockTime{12, 0}, to: clockTime{18, 0}, anchor: clockTime{15, 0}},
	},
	domain.ActivityMeditation: {
		{from: clockTime{9, 0}, to: clockTime{12, 0}, anchor: clockTime{11, 0}},
		{from: clockTime{12, 0}, to: clockTime{18, 0}, anchor: clockTime{15, 30}},
	},
	domain.ActivityBreak: {
		{from: clockTime{9, 0}, to: clockTime{12, 0}, anchor: clockTime{10, 30}},
		{from: clockTime{12, 0}, to: clockTime{18, 0}, anchor: clockTime{15, 0}},
	},
	domain.ActivityGeneral: {
		{from: clockTime{9, 0}, to: clockTime{12, 0}, anchor: clockTime{10, 0}},
		{from: clockTime{12, 0}, to: clockTime{18, 0}, anchor: clockTime{14, 0}},
	},
}
