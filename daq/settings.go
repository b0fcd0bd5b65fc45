package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// showSettingsDialog displays a settings dialog with tabs for the display,
// serial and mock sections.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createDisplayTab(state),
		createSerialTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 450))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 450))
	d.Show()
}

// saveConfig validates and persists the configuration. An invalid section
// is reported and nothing is written.
func saveConfig(state *appState) bool {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return false
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	return true
}

// createDisplayTab creates the Display configuration tab. Changes apply from
// the next refresh; the refresh interval itself applies after a restart.
func createDisplayTab(state *appState) *container.TabItem {
	d := &state.cfg.Display

	plotPointsEntry := widget.NewEntry()
	plotPointsEntry.SetText(strconv.Itoa(d.MaxPlotPoints))

	averageWindowEntry := widget.NewEntry()
	averageWindowEntry.SetText(strconv.Itoa(d.AverageWindow))

	cutoffEntry := widget.NewEntry()
	cutoffEntry.SetText(fmt.Sprintf("%.3f", d.CutoffHz))

	orderEntry := widget.NewEntry()
	orderEntry.SetText(strconv.Itoa(d.FilterOrder))

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(fmt.Sprintf("%.1f", d.SampleRateHz))

	refreshEntry := widget.NewEntry()
	refreshEntry.SetText(d.RefreshInterval.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Plot Points", Widget: plotPointsEntry},
			{Text: "Average Window (0=all)", Widget: averageWindowEntry},
			{Text: "Cutoff (Hz)", Widget: cutoffEntry},
			{Text: "Filter Order", Widget: orderEntry},
			{Text: "Sample Rate (Hz, 0=auto)", Widget: sampleRateEntry},
			{Text: "Refresh Interval", Widget: refreshEntry},
		},
		OnSubmit: func() {
			if n, err := strconv.Atoi(plotPointsEntry.Text); err == nil {
				d.MaxPlotPoints = n
			}
			if n, err := strconv.Atoi(averageWindowEntry.Text); err == nil {
				d.AverageWindow = n
			}
			if f, err := strconv.ParseFloat(cutoffEntry.Text, 64); err == nil {
				d.CutoffHz = f
			}
			if n, err := strconv.Atoi(orderEntry.Text); err == nil {
				d.FilterOrder = n
			}
			if f, err := strconv.ParseFloat(sampleRateEntry.Text, 64); err == nil {
				d.SampleRateHz = f
			}
			if dur, err := time.ParseDuration(refreshEntry.Text); err == nil {
				d.RefreshInterval = dur
			}
			if !saveConfig(state) {
				return
			}

			// Units are owned by the toolbar toggle.
			s := d.Settings()
			s.Units = state.core.Settings().Units
			state.core.SetSettings(s)
			updateFromSnapshot(state, state.core.Refresh())
		},
	}

	return container.NewTabItem("Display", form)
}

// createSerialTab creates the Serial configuration tab. Changes apply to the
// next session.
func createSerialTab(state *appState) *container.TabItem {
	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	timeoutEntry := widget.NewEntry()
	timeoutEntry.SetText(state.cfg.Serial.ReadTimeout.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "Read Timeout", Widget: timeoutEntry},
		},
		OnSubmit: func() {
			if n, err := strconv.Atoi(baudEntry.Text); err == nil {
				state.cfg.Serial.BaudRate = n
			}
			if dur, err := time.ParseDuration(timeoutEntry.Text); err == nil {
				state.cfg.Serial.ReadTimeout = dur
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Serial", form)
}

// createMockTab creates the simulated brake dyno tab.
func createMockTab(state *appState) *container.TabItem {
	m := &state.cfg.Mock

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(m.SampleRate.String())

	ambientEntry := widget.NewEntry()
	ambientEntry.SetText(fmt.Sprintf("%.1f", m.Ambient))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.3f", m.NoiseLevel))

	periodEntry := widget.NewEntry()
	periodEntry.SetText(m.BrakePeriod.String())

	durationEntry := widget.NewEntry()
	durationEntry.SetText(m.BrakeDuration.String())

	rpmEntry := widget.NewEntry()
	rpmEntry.SetText(fmt.Sprintf("%.0f", m.MaxRPM))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Sample Rate", Widget: sampleRateEntry},
			{Text: "Ambient (°C)", Widget: ambientEntry},
			{Text: "Noise Level", Widget: noiseEntry},
			{Text: "Brake Period", Widget: periodEntry},
			{Text: "Brake Duration", Widget: durationEntry},
			{Text: "Max RPM", Widget: rpmEntry},
		},
		OnSubmit: func() {
			if dur, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
				m.SampleRate = dur
			}
			if f, err := strconv.ParseFloat(ambientEntry.Text, 64); err == nil {
				m.Ambient = f
			}
			if f, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
				m.NoiseLevel = f
			}
			if dur, err := time.ParseDuration(periodEntry.Text); err == nil {
				m.BrakePeriod = dur
			}
			if dur, err := time.ParseDuration(durationEntry.Text); err == nil {
				m.BrakeDuration = dur
			}
			if f, err := strconv.ParseFloat(rpmEntry.Text, 64); err == nil {
				m.MaxRPM = f
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Mock", form)
}
