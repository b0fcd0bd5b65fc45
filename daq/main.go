package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/godaq/pkg/aggregate"
	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/core"
	"github.com/itohio/godaq/pkg/daq"
	"github.com/itohio/godaq/pkg/frame"
	"github.com/itohio/godaq/pkg/scope"
)

func main() {
	var (
		portFlag          = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag        = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag          = flag.Bool("mock", false, "Use the simulated brake dyno instead of a serial port")
		exportDirFlag     = flag.String("export-dir", "", "Export directory override")
		averageWindowFlag = flag.Int("average-window", -1, "Samples in the running average (0 = whole session, overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *mockFlag {
		cfg.Serial.Port = daq.MockPort
	}
	if *exportDirFlag != "" {
		cfg.Export.Directory = *exportDirFlag
	}
	if *averageWindowFlag >= 0 {
		cfg.Display.AverageWindow = *averageWindowFlag
	}

	c, err := core.New(cfg, core.Options{})
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := c.Run(ctx); err != nil {
			log.Printf("Background processing ended: %v", err)
		}
	}()

	application := app.NewWithID("com.itohio.godaq")

	window := application.NewWindow("Brake Dyno DAQ")
	window.Resize(fyne.NewSize(1280, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		core:       c,
		window:     window,
		channel:    frame.IR1,
	}

	// The toolbar triggers a first redraw, so the views go first.
	state.scopeWidget = scope.New(scope.DefaultMaxDisplayPoints)
	averages := createAveragePanel(state)
	state.status = widget.NewLabel("Idle")
	toolbar := createToolbar(state)

	window.SetContent(container.NewBorder(
		toolbar,
		state.status,
		nil,
		averages,
		state.scopeWidget,
	))

	go pollSnapshots(ctx, state)

	window.SetOnClosed(func() {
		cancel()
		if err := c.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	})
	window.ShowAndRun()
}

// appState holds the application state. Widgets are only touched on the
// Fyne thread.
type appState struct {
	cfg        *config.Config
	configPath string
	core       *core.Core
	window     fyne.Window

	portSelect  *widget.Select
	portNames   map[string]string // display name -> port name
	startBtn    *widget.Button
	exportBtn   *widget.Button
	folderLabel *widget.Label
	channelSel  *widget.Select
	scopeWidget *scope.ScopeWidget
	averages    [frame.NumChannels]*widget.Label
	status      *widget.Label

	channel frame.Channel
}

// createToolbar creates the port selector and the acquisition, export and
// display controls.
func createToolbar(state *appState) fyne.CanvasObject {
	state.portSelect = widget.NewSelect(nil, nil)
	refreshPorts(state)

	refreshBtn := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() {
		refreshPorts(state)
	})

	state.startBtn = widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), func() {
		handleStartStop(state)
	})

	state.folderLabel = widget.NewLabel(state.cfg.Export.Directory)
	folderBtn := widget.NewButtonWithIcon("", theme.FolderOpenIcon(), func() {
		chooseExportFolder(state)
	})

	state.exportBtn = widget.NewButtonWithIcon("Export", theme.DocumentSaveIcon(), func() {
		handleExport(state)
	})

	fahrenheit := widget.NewCheck("°F", func(on bool) {
		s := state.core.Settings()
		s.Units = frame.Celsius
		if on {
			s.Units = frame.Fahrenheit
		}
		state.core.SetSettings(s)
		updateFromSnapshot(state, state.core.Refresh())
	})
	fahrenheit.SetChecked(state.core.Settings().Units == frame.Fahrenheit)

	names := make([]string, 0, frame.NumChannels-1)
	for _, ch := range frame.Channels()[1:] {
		names = append(names, ch.String())
	}
	state.channelSel = widget.NewSelect(names, func(name string) {
		if ch, err := frame.ParseChannel(name); err == nil {
			state.channel = ch
			updateFromSnapshot(state, state.core.Snapshot())
		}
	})
	state.channelSel.SetSelected(state.channel.String())

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.portSelect, refreshBtn, state.startBtn, folderBtn, state.folderLabel, state.exportBtn),
		container.NewHBox(state.channelSel, fahrenheit, settingsBtn),
		nil,
	)
}

// createAveragePanel creates one running-average label per channel.
func createAveragePanel(state *appState) fyne.CanvasObject {
	box := container.NewVBox(widget.NewLabelWithStyle("Running average", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
	for _, ch := range frame.Channels()[1:] {
		label := widget.NewLabel(ch.String() + ": -")
		state.averages[ch] = label
		box.Add(label)
	}
	return box
}

// refreshPorts reloads the port list, keeping the configured port selectable.
func refreshPorts(state *appState) {
	ports, err := state.core.ListPorts()
	if err != nil {
		log.Printf("%v", err)
	}

	state.portNames = make(map[string]string, len(ports)+1)
	options := make([]string, 0, len(ports)+1)
	selected := ""
	for _, p := range ports {
		display := p.Name
		if p.Description != "" && p.Description != p.Name {
			display = fmt.Sprintf("%s (%s)", p.Name, p.Description)
		}
		options = append(options, display)
		state.portNames[display] = p.Name
		if p.Name == state.cfg.Serial.Port {
			selected = display
		}
	}
	if selected == "" && state.cfg.Serial.Port != "" {
		options = append(options, state.cfg.Serial.Port)
		state.portNames[state.cfg.Serial.Port] = state.cfg.Serial.Port
		selected = state.cfg.Serial.Port
	}

	state.portSelect.SetOptions(options)
	if selected != "" {
		state.portSelect.SetSelected(selected)
	}
}

func selectedPort(state *appState) string {
	if name, ok := state.portNames[state.portSelect.Selected]; ok {
		return name
	}
	return state.portSelect.Selected
}

// handleStartStop starts or stops acquisition.
func handleStartStop(state *appState) {
	if state.core.State() == daq.Running {
		if err := state.core.Stop(); err != nil {
			dialog.ShowError(err, state.window)
		}
		updateControls(state)
		return
	}

	port := selectedPort(state)
	if err := state.core.Start(port); err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", port, err), state.window)
		return
	}
	state.cfg.Serial.Port = port
	updateControls(state)
}

// handleExport starts or stops the CSV export.
func handleExport(state *appState) {
	if state.core.ExportPath() != "" {
		if err := state.core.StopExport(); err != nil {
			dialog.ShowError(err, state.window)
		}
		updateControls(state)
		return
	}

	if _, err := state.core.StartExport(state.cfg.Export.Directory); err != nil {
		dialog.ShowError(fmt.Errorf("failed to start export: %w", err), state.window)
		return
	}
	updateControls(state)
}

// chooseExportFolder lets the user pick the export directory.
func chooseExportFolder(state *appState) {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		if uri == nil {
			return
		}
		state.cfg.Export.Directory = uri.Path()
		state.folderLabel.SetText(uri.Path())
	}, state.window)
}

// updateControls reflects the acquisition and export state in the toolbar.
func updateControls(state *appState) {
	if state.core.State() == daq.Running {
		state.startBtn.SetText("Stop")
		state.startBtn.SetIcon(theme.MediaStopIcon())
		state.portSelect.Disable()
	} else {
		state.startBtn.SetText("Start")
		state.startBtn.SetIcon(theme.MediaPlayIcon())
		state.portSelect.Enable()
	}

	if state.core.ExportPath() != "" {
		state.exportBtn.SetText("Stop Export")
		state.exportBtn.Importance = widget.HighImportance
	} else {
		state.exportBtn.SetText("Export")
		state.exportBtn.Importance = widget.MediumImportance
	}
	state.exportBtn.Refresh()
}

// pollSnapshots pushes the latest snapshot to the widgets every refresh
// interval until ctx is done.
func pollSnapshots(ctx context.Context, state *appState) {
	ticker := time.NewTicker(state.cfg.Display.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := state.core.Snapshot()
			fyne.Do(func() {
				updateFromSnapshot(state, snap)
			})
		}
	}
}

// updateFromSnapshot redraws the trace, the averages and the status line.
func updateFromSnapshot(state *appState, snap aggregate.Snapshot) {
	units := snap.Settings.Units

	ch := snap.Channel(state.channel)
	suffix := ""
	if state.channel.IsTemperature() {
		suffix = units.Symbol()
	}
	state.scopeWidget.UpdateData(scope.Trace{
		Label:    state.channel.String(),
		Unit:     suffix,
		Time:     snap.Channel(frame.Time).Series,
		Raw:      ch.Series,
		Filtered: ch.Filtered,
		Average:  ch.Average,
	})

	for _, c := range frame.Channels()[1:] {
		v := snap.Channel(c)
		text := fmt.Sprintf("%s: -", c)
		if snap.Frames > 0 {
			text = fmt.Sprintf("%s: %.2f", c, v.Average)
			if c.IsTemperature() {
				text += " " + units.Symbol()
			}
		}
		state.averages[c].SetText(text)
	}

	stats := state.core.Stats()
	status := fmt.Sprintf("%s | %d frames | %d dropped lines", state.core.State(), stats.Frames, stats.DecodeErrors)
	if snap.SampleRateHz > 0 {
		status += fmt.Sprintf(" | %.1f Hz", snap.SampleRateHz)
	}
	if path := state.core.ExportPath(); path != "" {
		status += " | exporting " + path
	}
	if ch.Err != nil {
		status += " | filter: " + ch.Err.Error()
	}
	state.status.SetText(status)

	updateControls(state)
}
