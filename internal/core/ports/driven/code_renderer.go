package driven

// CodeRenderer renders content as a scannable code image
type CodeRenderer interface {
	// PNG renders content as a square PNG of size pixels
	PNG(content string, size int) ([]byte, error)
}
