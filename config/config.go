package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	APIURL            string
	Port              string
	Env               string
	SessionStore      string
	SessionDir        string
	MongoURI          string
	DBName            string
	AWSRegion         string
	AWSBucketName     string
	SendGridAPIKey    string
	ExportMailFrom    string
	ChromeDriverPath  = defaultDriverPath
	ExportArchive     bool
	ExportMail        bool
	AllowedOrigins    []string
	DashboardIdleTTL  = 24 * time.Hour
	DefaultProfile    = builtinProfile()
	DefaultAPIURL     = "http://localhost:3000"
	defaultDriverPath = "/usr/local/bin/chromedriver"
)

// ProfileDefaults seeds the dashboard form for a fresh session.
type ProfileDefaults struct {
	Age      float64 `yaml:"age"`
	Weight   float64 `yaml:"weight"`
	Height   float64 `yaml:"height"`
	Gender   string  `yaml:"gender"`
	Activity string  `yaml:"activity"`
	Goal     string  `yaml:"goal"`
	Diet     string  `yaml:"diet"`
}

// File is the optional YAML configuration named by CONFIG_FILE.
// Environment variables take precedence over anything set here.
type File struct {
	APIURL         string          `yaml:"api_url"`
	Port           string          `yaml:"port"`
	SessionStore   string          `yaml:"session_store"`
	SessionDir     string          `yaml:"session_dir"`
	MongoURI       string          `yaml:"mongo_uri"`
	DBName         string          `yaml:"db_name"`
	AWSRegion      string          `yaml:"aws_region"`
	AWSBucketName  string          `yaml:"aws_bucket_name"`
	ExportMailFrom string          `yaml:"export_mail_from"`
	ExportArchive  bool            `yaml:"export_archive"`
	ExportMail     bool            `yaml:"export_mail"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	DashboardIdle  string          `yaml:"dashboard_idle_ttl"`
	Profile        ProfileDefaults `yaml:"profile"`
}

func builtinProfile() ProfileDefaults {
	return ProfileDefaults{
		Age:      21,
		Weight:   67,
		Height:   163,
		Gender:   "female",
		Activity: "active",
		Goal:     "weight_loss",
		Diet:     "non-veg",
	}
}

// LoadConfig loads environment variables from .env file and the optional YAML file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	var file File
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		f, err := LoadFile(path)
		if err != nil {
			log.Printf("Ignoring config file %s: %v", path, err)
		} else {
			file = *f
		}
	}

	apply(file)
}

// LoadFile parses a YAML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &f, nil
}

func apply(file File) {
	APIURL = pick("API_URL", file.APIURL, DefaultAPIURL)
	Port = pick("PORT", file.Port, "5174")
	Env = pick("ENV", "", "development")
	SessionStore = pick("SESSION_STORE", file.SessionStore, "file")
	SessionDir = pick("SESSION_DIR", file.SessionDir, ".sessions")
	MongoURI = pick("MONGO_URI", file.MongoURI, "mongodb://localhost:27017/")
	DBName = pick("DB_NAME", file.DBName, "meal_planner")
	AWSRegion = pick("AWS_REGION", file.AWSRegion, "ap-south-1")
	AWSBucketName = pick("AWS_BUCKET_NAME", file.AWSBucketName, "")
	SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	ExportMailFrom = pick("EXPORT_MAIL_FROM", file.ExportMailFrom, "no-reply@mealplanner.app")
	ChromeDriverPath = pick("CHROME_DRIVER_PATH", "", defaultDriverPath)
	ExportArchive = pickBool("EXPORT_ARCHIVE", file.ExportArchive)
	ExportMail = pickBool("EXPORT_MAIL", file.ExportMail)
	DashboardIdleTTL = pickDuration("DASHBOARD_IDLE_TTL", file.DashboardIdle, 24*time.Hour)

	AllowedOrigins = file.AllowedOrigins
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				AllowedOrigins = append(AllowedOrigins, o)
			}
		}
	}

	DefaultProfile = mergeProfile(builtinProfile(), file.Profile)
}

func pick(key, fromFile, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fromFile != "" {
		return fromFile
	}
	return fallback
}

func pickBool(key string, fromFile bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("Invalid boolean for %s: %q", key, v)
			return fromFile
		}
		return b
	}
	return fromFile
}

func pickDuration(key, fromFile string, fallback time.Duration) time.Duration {
	raw := pick(key, fromFile, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Invalid duration for %s: %q", key, raw)
		return fallback
	}
	return d
}

func mergeProfile(base, over ProfileDefaults) ProfileDefaults {
	if over.Age > 0 {
		base.Age = over.Age
	}
	if over.Weight > 0 {
		base.Weight = over.Weight
	}
	if over.Height > 0 {
		base.Height = over.Height
	}
	if over.Gender != "" {
		base.Gender = over.Gender
	}
	if over.Activity != "" {
		base.Activity = over.Activity
	}
	if over.Goal != "" {
		base.Goal = over.Goal
	}
	if over.Diet != "" {
		base.Diet = over.Diet
	}
	return base
}
