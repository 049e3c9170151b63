package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/fileutil"
)

// Multipart field names accepted by POST /v1/compose.
const (
	fieldMarkup           = "markup"
	fieldFormat           = "format"
	fieldTitle            = "title"
	fieldSignature        = "signature"
	fieldSignatureLabel   = "signature_label"
	fieldWatermark        = "watermark"
	fieldWatermarkColor   = "watermark_color"
	fieldWatermarkOpacity = "watermark_opacity"
	fieldWatermarkAngle   = "watermark_angle"
	fieldAttachments      = "attachments"
)

// Response headers describing the composition.
const (
	HeaderSignatureMode      = "X-Signature-Mode"
	HeaderAttachmentsMerged  = "X-Attachments-Merged"
	HeaderAttachmentsSkipped = "X-Attachments-Skipped"
	HeaderMergeDegraded      = "X-Merge-Degraded"
)

const (
	signatureModeNone = "none"
	responseFilename  = "document.pdf"

	errMsgMultipartRequired = "expected a multipart/form-data body"
	// net/http reports an exceeded MaxBytesReader with this text.
	errMsgMultipartBodyTooBig = "request body too large"
)

// errBadField marks a form field that could not be parsed.
var errBadField = errors.New("invalid form field")

// handleCompose renders the uploaded markup to PDF.
func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, r, http.StatusRequestEntityTooLarge, codeTooLarge, tooLargeMessage(s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, r, http.StatusBadRequest, codeBadRequest, errMsgMultipartRequired)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := s.buildRequest(r.MultipartForm)
	if err != nil {
		status, code := http.StatusBadRequest, codeValidation
		if errors.Is(err, errBadField) {
			code = codeBadRequest
		}
		writeError(w, r, status, code, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.composer.Compose(ctx, req)
	if err != nil {
		status, code := classify(err)
		s.logger.Printf("[server] %s compose failed: %v", RequestID(r.Context()), err)
		writeError(w, r, status, code, err.Error())
		return
	}

	for _, a := range result.Attachments {
		if a.Skipped {
			s.logger.Printf("[server] %s attachment %q skipped: %s", RequestID(r.Context()), a.Filename, a.Reason)
		}
	}

	mode := signatureModeNone
	if result.Placement != nil {
		mode = result.Placement.Mode
	}

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", responseFilename))
	h.Set("Content-Length", strconv.Itoa(len(result.PDF)))
	h.Set(HeaderSignatureMode, mode)
	h.Set(HeaderAttachmentsMerged, strconv.Itoa(result.MergedAttachments()))
	h.Set(HeaderAttachmentsSkipped, strconv.Itoa(result.SkippedAttachments()))
	if result.MergeDegraded {
		h.Set(HeaderMergeDegraded, "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.PDF)
}

// buildRequest turns the parsed form into a compose request, filling in
// server defaults for anything the client left out.
func (s *Server) buildRequest(form *multipart.Form) (pdfcompose.Request, error) {
	var req pdfcompose.Request

	markup, markupName, err := textOrFile(form, fieldMarkup)
	if err != nil {
		return req, err
	}
	req.Markup = markup
	req.Title = formValue(form, fieldTitle)

	req.Format = formValue(form, fieldFormat)
	if req.Format == "" && isMarkdownFilename(markupName) {
		req.Format = pdfcompose.FormatMarkdown
	}

	sig, err := signatureFrom(form)
	if err != nil {
		return req, err
	}
	if sig != nil {
		sig.LabelText = formValue(form, fieldSignatureLabel)
		if sig.LabelText == "" {
			sig.LabelText = s.cfg.SignatureLabel
		}
		req.Signature = sig
	}

	req.Margins, err = s.marginsFrom(form)
	if err != nil {
		return req, err
	}

	req.Watermark, err = s.watermarkFrom(form)
	if err != nil {
		return req, err
	}

	for _, fh := range form.File[fieldAttachments] {
		data, err := readPart(fh)
		if err != nil {
			return req, fmt.Errorf("%w: attachment %q: %v", errBadField, fh.Filename, err)
		}
		// Mergeability is decided from the declared type and the filename,
		// never from the bytes.
		req.Attachments = append(req.Attachments, pdfcompose.Attachment{
			Data:     data,
			Filename: filepath.Base(fh.Filename),
			MIMEType: fh.Header.Get("Content-Type"),
		})
	}

	return req, req.Validate()
}

func (s *Server) marginsFrom(form *multipart.Form) (*pdfcompose.Margins, error) {
	base := pdfcompose.DefaultMargins()
	if s.cfg.Margins != nil {
		base = *s.cfg.Margins
	}

	sides := []struct {
		field string
		dst   *float64
	}{
		{"margin_top", &base.Top},
		{"margin_bottom", &base.Bottom},
		{"margin_left", &base.Left},
		{"margin_right", &base.Right},
	}

	set := s.cfg.Margins != nil
	for _, side := range sides {
		v := formValue(form, side.field)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not a number", errBadField, side.field, v)
		}
		*side.dst = f
		set = true
	}
	if !set {
		return nil, nil
	}
	return &base, nil
}

func (s *Server) watermarkFrom(form *multipart.Form) (*pdfcompose.Watermark, error) {
	text := formValue(form, fieldWatermark)
	if text == "" {
		return s.cfg.Watermark, nil
	}

	wm := &pdfcompose.Watermark{
		Text:  text,
		Color: formValue(form, fieldWatermarkColor),
		Angle: pdfcompose.DefaultWatermarkAngle,
	}
	if s.cfg.Watermark != nil {
		if wm.Color == "" {
			wm.Color = s.cfg.Watermark.Color
		}
		wm.Opacity = s.cfg.Watermark.Opacity
		wm.Angle = s.cfg.Watermark.Angle
	}

	if v := formValue(form, fieldWatermarkOpacity); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not a number", errBadField, fieldWatermarkOpacity, v)
		}
		wm.Opacity = f
	}
	if v := formValue(form, fieldWatermarkAngle); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not a number", errBadField, fieldWatermarkAngle, v)
		}
		wm.Angle = f
	}
	return wm, nil
}

// signatureFrom accepts the signature as an uploaded image or as a text
// field holding a data URL or raw base64.
func signatureFrom(form *multipart.Form) (*pdfcompose.Signature, error) {
	if files := form.File[fieldSignature]; len(files) > 0 {
		fh := files[0]
		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("%w: signature: %v", errBadField, err)
		}
		if len(data) == 0 {
			return &pdfcompose.Signature{}, nil
		}
		ct := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "image/") {
			ct = fileutil.DetectContentType(fh.Filename, data)
		}
		return &pdfcompose.Signature{
			ImageData: "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data),
		}, nil
	}

	if v := formValue(form, fieldSignature); v != "" {
		return &pdfcompose.Signature{ImageData: v}, nil
	}
	return nil, nil
}

// textOrFile returns a field's value, preferring an uploaded file of the
// same name. The second result is the uploaded filename, if any.
func textOrFile(form *multipart.Form, name string) (string, string, error) {
	if files := form.File[name]; len(files) > 0 {
		data, err := readPart(files[0])
		if err != nil {
			return "", "", fmt.Errorf("%w: %s: %v", errBadField, name, err)
		}
		return string(data), files[0].Filename, nil
	}
	return formValue(form, name), "", nil
}

func formValue(form *multipart.Form, name string) string {
	if vs := form.Value[name]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return fileutil.ReadLimited(f, 0)
}

func isMarkdownFilename(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func isBodyTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || strings.Contains(err.Error(), errMsgMultipartBodyTooBig)
}
