package base

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

// Selenium rasterizes through ChromeDriver. Each capture starts its own
// driver service on a port from the global port manager.
type Selenium struct {
	DriverPath string
	Scale      float64
}

func NewSelenium(driverPath string, scale float64) *Selenium {
	return &Selenium{DriverPath: driverPath, Scale: scale}
}

func (s *Selenium) Name() string { return "selenium" }

func (s *Selenium) Rasterize(ctx context.Context, html, selector string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	InitPortManager(4444, 16)

	port, err := GlobalPortManager.GetPort()
	if err != nil {
		return nil, fmt.Errorf("port error: %w", err)
	}
	defer GlobalPortManager.ReleasePort(port)

	// WebDriver can only navigate, so the document goes through a temp file
	f, err := os.CreateTemp("", "plan-*.html")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return nil, fmt.Errorf("temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}

	service, err := selenium.NewChromeDriverService(s.DriverPath, port)
	if err != nil {
		return nil, fmt.Errorf("error starting Chrome driver service: %v", err)
	}
	defer service.Stop()

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Args: []string{
			"--headless=new",
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-extensions",
			"--disable-gpu",
			"--hide-scrollbars",
			fmt.Sprintf("--window-size=%d,1000", ViewportWidth),
			fmt.Sprintf("--force-device-scale-factor=%g", s.Scale),
		},
		ExcludeSwitches: []string{"enable-automation"},
	})

	driver, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		return nil, fmt.Errorf("error creating WebDriver: %v", err)
	}
	defer driver.Quit()

	if deadline, ok := ctx.Deadline(); ok {
		driver.SetPageLoadTimeout(time.Until(deadline))
	} else {
		driver.SetPageLoadTimeout(60 * time.Second)
	}

	if err := driver.Get("file://" + f.Name()); err != nil {
		return nil, fmt.Errorf("navigation error: %w", err)
	}
	if err := driver.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		_, err := wd.FindElement(selenium.ByCSSSelector, selector)
		return err == nil, nil
	}, 10*time.Second); err != nil {
		return nil, fmt.Errorf("element %s not found: %w", selector, err)
	}

	elem, err := driver.FindElement(selenium.ByCSSSelector, selector)
	if err != nil {
		return nil, fmt.Errorf("element %s not found: %w", selector, err)
	}
	img, err := elem.Screenshot(true)
	if err != nil {
		return nil, fmt.Errorf("element screenshot error: %w", err)
	}
	return img, nil
}
