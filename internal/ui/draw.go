package ui

import (
	"fmt"

	"openeink/internal/epd"
	"openeink/internal/gfx"
	appLog "openeink/internal/log"
)

// Layout.
const (
	fontSmall  = 8
	fontMedium = 12
	fontLarge  = 16

	headerHeight = 20
	statusHeight = 15
	menuTop      = 30
	menuSpacing  = 20

	qrScale = 2
	qrMinX  = 210
)

func (m *Machine) render() {
	m.panel.Framebuffer().Clear()
	switch m.screen {
	case Welcome:
		m.drawWelcome()
	case MainMenu:
		m.drawMainMenu()
	case Settings:
		m.drawSettings()
	case About:
		m.drawAbout()
	case Error:
		m.drawError()
	}
}

func (m *Machine) text(x, y int, s string, size int) {
	_ = m.painter.Text(x, y, s, size, epd.Dark)
}

func (m *Machine) drawWelcome() {
	m.text(50, 30, "OpenEInk", fontLarge)
	m.text(40, 50, "Open Source", fontMedium)
	m.text(30, 70, "E-Ink Firmware", fontMedium)
	m.text(60, 90, "v"+m.info.Version, fontSmall)
	m.text(20, 110, "Press any key to continue", fontSmall)
	_ = m.painter.Rect(5, 5, epd.Width-10, epd.Height-10, epd.Dark, false)
}

func (m *Machine) drawHeader(title string) {
	_ = m.painter.Rect(0, 0, epd.Width, headerHeight, epd.Dark, true)
	_ = m.painter.Text(10, 5, title, fontMedium, epd.Light)
}

func (m *Machine) drawMainMenu() {
	m.drawHeader("Main Menu")
	for i, item := range m.menu {
		y := menuTop + i*menuSpacing
		if i == m.cursor {
			m.text(10, y, ">", fontMedium)
		}
		m.text(25, y, item.Label, fontMedium)
	}
	m.drawStatusBar()
}

// drawStatusBar draws the bottom bar. The battery glyph is a 20x10
// outline with a nub, filled left to right by charge level.
func (m *Machine) drawStatusBar() {
	y := epd.Height - statusHeight
	m.painter.Line(0, y, epd.Width-1, y, epd.Dark)
	m.text(5, y+2, m.status, fontSmall)

	bx, by := epd.Width-25, y+2
	_ = m.painter.Rect(bx, by, 20, 10, epd.Dark, false)
	_ = m.painter.Rect(epd.Width-5, y+5, 3, 4, epd.Dark, true)
	if m.hasBattery && m.batteryLevel > 0 {
		_ = m.painter.Rect(bx+2, by+2, m.batteryLevel*4, 6, epd.Dark, true)
	}
}

func (m *Machine) drawSettings() {
	m.drawHeader("Settings")
	m.text(10, 30, "Display:", fontMedium)
	m.text(20, 45, fmt.Sprintf("Full refresh: every %d", m.info.FullRefreshInterval), fontSmall)
	m.text(20, 60, "Refresh: Optimized", fontSmall)
	m.text(10, 80, "Power:", fontMedium)
	sleep := "Sleep: off"
	if m.info.SleepAfter > 0 {
		sleep = "Sleep: " + m.info.SleepAfter.String()
	}
	m.text(20, 95, sleep, fontSmall)
	m.text(10, 110, "Press any key to return", fontSmall)
}

func (m *Machine) drawAbout() {
	m.drawHeader("About")
	m.text(10, 30, "OpenEInk Firmware", fontMedium)
	m.text(10, 45, "Version: "+m.info.Version, fontSmall)
	if m.info.Build != "" {
		m.text(10, 60, "Build: "+m.info.Build, fontSmall)
	}
	m.text(10, 80, "Features:", fontSmall)
	m.text(15, 95, "- No activation required", fontSmall)
	m.text(15, 105, "- Open source", fontSmall)
	m.text(15, 115, "- Low power design", fontSmall)

	if m.info.AboutURL == "" {
		return
	}
	bits, err := gfx.QRBitmap(m.info.AboutURL)
	if err != nil {
		appLog.Warn("about qr code skipped", "err", err)
		return
	}
	// Right column, below the header. Left out when it would cover the
	// text column.
	side := len(bits) * qrScale
	x := epd.Width - side - 10
	if x < qrMinX || headerHeight+4+side > epd.Height {
		appLog.Debug("about qr code does not fit", "side", side)
		return
	}
	_ = m.painter.Bitmap(x, headerHeight+4, bits, qrScale)
}

func (m *Machine) drawError() {
	m.drawHeader("Error")
	m.painter.Line(50, 40, 70, 60, epd.Dark)
	m.painter.Line(70, 40, 50, 60, epd.Dark)
	m.text(10, 80, m.status, fontMedium)
	m.text(10, 110, "Press any key to continue", fontSmall)
}
