//go:build integration

package integration

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/infra"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/overlay"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/policy"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/usecase"
)

const (
	tiktokPkg  = "com.zhiliaoapp.musically"
	firefoxPkg = "org.mozilla.firefox"
)

func writeFile(path, content string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
}

func writeImage(path string) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 30, B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()
	Expect(png.Encode(f, img)).To(Succeed())
}

var _ = Describe("Overlay daemon", func() {
	var (
		tmpDir     string
		key        []byte
		store      *infra.EncryptedSettingsStore
		events     *infra.EventLog
		surface    *fakeSurface
		navigator  *homeNavigator
		notifier   *fakeNotifier
		controller *daemon.Controller
		catalog    *infra.DesktopCatalog
		runtime    *daemon.Runtime
		signals    chan os.Signal
		done       chan error
		imagePath  string
	)

	focus := func(pkg string) {
		events.Record(domain.UsageEvent{
			Package:   pkg,
			Kind:      domain.EventMoveToForeground,
			Timestamp: time.Now(),
		})
	}

	start := func() {
		done = make(chan error, 1)
		go func() { done <- runtime.Run(context.Background(), signals) }()
		Eventually(func() *domain.DaemonInfo {
			info, _ := store.GetDaemon()
			return info
		}, 2*time.Second, 10*time.Millisecond).ShouldNot(BeNil())
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "overlaymon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		appsDir := filepath.Join(tmpDir, "applications")
		writeFile(filepath.Join(appsDir, tiktokPkg+".desktop"),
			"[Desktop Entry]\nType=Application\nName=TikTok\nExec=tiktok\n")
		writeFile(filepath.Join(appsDir, firefoxPkg+".desktop"),
			"[Desktop Entry]\nType=Application\nName=Firefox Web Browser\nExec=firefox %u\nStartupWMClass=firefox\n")
		imagePath = filepath.Join(tmpDir, "block.png")
		writeImage(imagePath)

		key, err = infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		store, err = infra.NewEncryptedSettingsStore(filepath.Join(tmpDir, "data"), key)
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		catalog = infra.NewDesktopCatalog([]string{appsDir}, appsDir, nil, logger)
		events = infra.NewEventLog(infra.DefaultEventRetention, infra.DefaultEventCapacity)
		surface = newFakeSurface()
		navigator = &homeNavigator{events: events}
		notifier = &fakeNotifier{}

		matcherConfig := policy.DefaultMatcherConfig(domain.AppID)
		matcherConfig.ExcludedPackages = append(matcherConfig.ExcludedPackages, infra.DesktopPackage)
		rules := policy.NewStore()
		intents := make(chan domain.OverlayIntent, 4)

		monitorConfig := daemon.DefaultMonitorConfig()
		monitorConfig.PollInterval = 20 * time.Millisecond
		monitor := daemon.NewMonitor(
			monitorConfig,
			usecase.NewForegroundDetector(events, usecase.DefaultUsageWindow, logger),
			policy.NewMatcher(matcherConfig),
			rules,
			usecase.NewAppNameCache(),
			catalog,
			notifier,
			intents,
			logger,
		)
		images := infra.NewImageCacheWithHome(infra.DefaultImageCacheBytes, tmpDir, logger)
		presenter := overlay.NewPresenter(overlay.DefaultPresenterConfig(), surface, images, navigator, logger)
		controller = daemon.NewController(store, rules, catalog, monitor, logger)
		runtime = daemon.NewRuntime(controller, monitor, presenter, intents, nil, images,
			store, infra.NewProcessManager(), "test", logger)
		signals = make(chan os.Signal, 1)
		done = nil
	})

	AfterEach(func() {
		if done != nil {
			signals <- syscall.SIGTERM
			Eventually(done, 3*time.Second).Should(Receive(BeNil()))
			Expect(surface.IsOpen()).To(BeFalse())
		}
		Expect(store.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("blocking a foreground app", func() {
		Context("when TikTok comes to the front under a name rule", func() {
			BeforeEach(func() {
				n, err := controller.ReplaceRules(fmt.Sprintf(
					`[{"type": 1, "pattern": "tiktok", "imagePaths": [%q], "overlayTexts": ["Go outside"]}]`, imagePath))
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(1))
			})

			It("should show the overlay exactly once and hide it when the user leaves", func() {
				focus(tiktokPkg)
				start()

				Eventually(surface.Renders, 2*time.Second, 10*time.Millisecond).Should(Equal(1))
				Consistently(surface.Renders, 300*time.Millisecond, 20*time.Millisecond).Should(Equal(1))
				Expect(surface.IsOpen()).To(BeTrue())

				frame := surface.LastFrame()
				Expect(frame.Image).NotTo(BeNil())
				Expect(frame.ImageRect).To(Equal(image.Rect(0, 0, 1920, 1080)))
				Expect(frame.Text).To(Equal("Go outside"))
				Expect(frame.Hint).To(Equal(overlay.HintText(3)))

				focus(firefoxPkg)
				Eventually(surface.IsOpen, 2*time.Second, 10*time.Millisecond).Should(BeFalse())
				Expect(surface.Renders()).To(Equal(1))
			})

			It("should close on three taps and go home", func() {
				focus(tiktokPkg)
				start()
				Eventually(surface.IsOpen, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

				for i := 0; i < 3; i++ {
					surface.taps <- time.Now()
				}

				Eventually(surface.IsOpen, 2*time.Second, 10*time.Millisecond).Should(BeFalse())
				Expect(navigator.Calls()).To(Equal(1))
				// The desktop now has focus and is never blocked.
				Consistently(surface.IsOpen, 300*time.Millisecond, 20*time.Millisecond).Should(BeFalse())
			})

			It("should show the status notification while monitoring", func() {
				start()
				Eventually(notifier.Body, 2*time.Second, 10*time.Millisecond).
					Should(Equal("Monitoring with 1 blocking rules"))

				signals <- syscall.SIGTERM
				Eventually(done, 3*time.Second).Should(Receive(BeNil()))
				done = nil
				Expect(notifier.Body()).To(BeEmpty())
			})
		})

		Context("when the app is only on the legacy blocklist", func() {
			It("should block it with the built-in presentation", func() {
				Expect(controller.ReplaceBlocklist([]string{firefoxPkg})).To(Succeed())
				focus(firefoxPkg)
				start()

				Eventually(surface.IsOpen, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
				frame := surface.LastFrame()
				Expect(frame.Image).To(BeNil())
				Expect(policy.DefaultQuotes()).To(ContainElement(frame.Text))
			})
		})
	})

	Describe("reconfiguring a running daemon", func() {
		It("should pick up rules written by another process on SIGHUP", func() {
			focus(tiktokPkg)
			start()
			Consistently(surface.IsOpen, 200*time.Millisecond, 20*time.Millisecond).Should(BeFalse())

			// A CLI process opens its own store handle and controller.
			cliStore, err := infra.NewEncryptedSettingsStore(filepath.Join(tmpDir, "data"), key)
			Expect(err).NotTo(HaveOccurred())
			defer cliStore.Close()
			cli := daemon.NewController(cliStore, policy.NewStore(), catalog, nil, zap.NewNop())
			_, err = cli.ReplaceRules(`[{"type": 0, "pattern": "com.zhiliaoapp.musically"}]`)
			Expect(err).NotTo(HaveOccurred())

			focus(tiktokPkg)
			signals <- syscall.SIGHUP
			Eventually(surface.IsOpen, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
		})

		It("should leave the active rules alone when a push is malformed", func() {
			_, err := controller.ReplaceRules(`[{"type": 0, "pattern": "com.zhiliaoapp.musically"}]`)
			Expect(err).NotTo(HaveOccurred())

			_, err = controller.ReplaceRules(`[{"type": 0, "pattern": "a"}, {"pattern": "no type"}]`)
			Expect(err).To(HaveOccurred())

			raw, err := store.LoadRuleDescriptors()
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(ContainSubstring(tiktokPkg))
			Expect(controller.Rules()).To(HaveLen(1))
		})
	})

	Describe("listing installed apps", func() {
		It("should return desktop entries sorted by name", func() {
			apps, err := controller.ListInstalledApps()
			Expect(err).NotTo(HaveOccurred())
			Expect(apps).To(Equal([]domain.InstalledApp{
				{Package: firefoxPkg, DisplayName: "Firefox Web Browser"},
				{Package: tiktokPkg, DisplayName: "TikTok"},
			}))
		})
	})
})
