// Package config loads fotbroms settings.
//
// Settings come from four layers, later ones winning: built-in defaults,
// an optional fotbroms.{yaml,toml,json} file, FOTBROMS_* environment
// variables, and command-line flags bound to the same keys.
//
// # Configuration File Structure
//
//	server:
//	  addr: ":8080"
//	  session_secret: "change-me"
//	  max_file_size: 1073741824
//	  accepts: "image/*, .mp4"
//	  retention: 72h
//	storage:
//	  backend: s3
//	  prefix: uploads/
//	s3:
//	  bucket: fotbroms
//	  region: eu-north-1
//	  endpoint: http://localhost:9000
//	  use_path_style: true
//	client:
//	  url: http://localhost:8080/
//	  accepts: "image/*"
//
// Nested keys map to environment variables by upper-casing and replacing
// dots with underscores, so s3.bucket is FOTBROMS_S3_BUCKET.
//
// # Usage
//
//	v := viper.New()
//	cfg, err := config.Load(v, "")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
