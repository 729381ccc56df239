package config

import "path/filepath"

const (
	defaultLogFile           = "zco-mx.log"
	defaultLogLevel          = "info"
	defaultLogFileMaxSize    = 20
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 28
	defaultLogCompress       = false
	defaultPort              = 8080
	defaultHost              = "0.0.0.0"
	defaultData              = "/var/opt/zco-mx"
	defaultDSN               = defaultData + "/zco-mx.db"
	defaultBaseURL           = "https://zco.mx"
	defaultWorkerPoolSize    = 10
	defaultMaxUploadSize     = 100
	defaultMaxRequeues       = 25
	defaultWebFormat         = "jpeg"
	defaultCBZQuality        = 65
	defaultWebQuality        = 85
	defaultAnnounceURL       = "http://bt.zco.mx:6969/announce"
)

type Option struct {
	Key   string
	Value interface{}
}

// Why use mapstructure instead of json, if use json as field tags, it can't recgnize the field, since the viper use mapstructure.
// see: https://pkg.go.dev/github.com/mitchellh/mapstructure#hdr-Field_Tags
type Options struct {
	// LogFile is the file to write logs to
	LogFile string `mapstructure:"log_file"`
	// LogLevel is the level of logging to show
	LogLevel string `mapstructure:"log_level"`
	// LogFileMaxSize is the maximum size of the log file before it is rotated
	LogFileMaxSize int `mapstructure:"log_file_max_size"`
	// LogFileMaxBackups is the maximum number of log files to keep
	LogFileMaxBackups int `mapstructure:"log_file_max_backups"`
	// LogFileMaxAge is the maximum number of days to keep a log file
	LogFileMaxAge int `mapstructure:"log_file_max_age"`
	// LogCompress is whether or not to compress the log files
	LogCompress bool `mapstructure:"log_compress"`
	// DSN is the URL of the database to connect to (sqlite)
	DSN string `mapstructure:"dsn_uri"`
	// Port is the port to listen on
	Port int `mapstructure:"port"`
	// Host is the host to listen on
	Host string `mapstructure:"host"`
	// Data is the directory to store data
	Data string `mapstructure:"data"`
	// BaseURL is the public base URL of the site, used in feeds and posts
	BaseURL        string `mapstructure:"base_url"`
	WorkerPoolSize int    `mapstructure:"worker_pool_size"`
	// MaxUploadSize is the maximum size of the upload, in MiB
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
	// MaxRequeues bounds how many times a failed post job is re-queued
	MaxRequeues int `mapstructure:"max_requeues"`
	// WebFormat is the encoding of the web rendition, jpeg or webp
	WebFormat string `mapstructure:"web_format"`
	// WebQuality and CBZQuality are the encoder quality targets (1-100)
	WebQuality int `mapstructure:"web_quality"`
	CBZQuality int `mapstructure:"cbz_quality"`
	// AnnounceURL is the tracker announce URL written into torrents
	AnnounceURL string `mapstructure:"announce_url"`

	// Credentials for the external posting services
	TwitterConsumerKey    string `mapstructure:"twitter_consumer_key"`
	TwitterConsumerSecret string `mapstructure:"twitter_consumer_secret"`
	TwitterAccessToken    string `mapstructure:"twitter_access_token"`
	TwitterAccessSecret   string `mapstructure:"twitter_access_secret"`
	TumblrConsumerKey     string `mapstructure:"tumblr_consumer_key"`
	TumblrConsumerSecret  string `mapstructure:"tumblr_consumer_secret"`
	TumblrAccessToken     string `mapstructure:"tumblr_access_token"`
	TumblrAccessSecret    string `mapstructure:"tumblr_access_secret"`
	TumblrBlogName        string `mapstructure:"tumblr_blog_name"`
	FacebookAccessToken   string `mapstructure:"facebook_access_token"`
	FacebookPageID        string `mapstructure:"facebook_page_id"`
}

func GetDefaultOptions() *Options {
	Opts = &Options{
		LogFile:           defaultLogFile,
		LogLevel:          defaultLogLevel,
		LogFileMaxSize:    defaultLogFileMaxSize,
		LogFileMaxBackups: defaultLogFileMaxBackups,
		LogFileMaxAge:     defaultLogFileMaxAge,
		LogCompress:       defaultLogCompress,
		DSN:               defaultDSN,
		Port:              defaultPort,
		Host:              defaultHost,
		Data:              defaultData,
		BaseURL:           defaultBaseURL,
		WorkerPoolSize:    defaultWorkerPoolSize,
		MaxUploadSize:     defaultMaxUploadSize,
		MaxRequeues:       defaultMaxRequeues,
		WebFormat:         defaultWebFormat,
		WebQuality:        defaultWebQuality,
		CBZQuality:        defaultCBZQuality,
		AnnounceURL:       defaultAnnounceURL,
	}
	return Opts
}

// OriginalsDir is where page originals and their renditions live,
// one subdirectory per rendition size.
func (o *Options) OriginalsDir(size string) string {
	return filepath.Join(o.Data, "images", size)
}

// ReleasesDir holds the packaged cbz archives of released books.
func (o *Options) ReleasesDir() string {
	return filepath.Join(o.Data, "releases")
}

// TorrentsDir holds the .torrent files of released books.
func (o *Options) TorrentsDir() string {
	return filepath.Join(o.Data, "torrents")
}

// TmpDir is the root under which per-job scratch directories are created.
func (o *Options) TmpDir() string {
	return filepath.Join(o.Data, "tmp")
}
