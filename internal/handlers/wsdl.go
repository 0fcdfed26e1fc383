package handlers

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// WSDLHandler imports SOAP service definitions. Each portType operation
// becomes a POST request with an XML body envelope skeleton. Import-only:
// SOAP's object model is lossy relative to the canonical model, so there is
// no byte-exact round trip.
type WSDLHandler struct{}

func NewWSDLHandler() *WSDLHandler { return &WSDLHandler{} }

func (h *WSDLHandler) Format() string { return "wsdl" }

func (h *WSDLHandler) CanExport() bool { return false }

func (h *WSDLHandler) CanImport(content string) bool {
	return strings.Contains(content, "definitions") &&
		(strings.Contains(content, "wsdl") || strings.Contains(content, "portType"))
}

func (h *WSDLHandler) Validate(content string) registry.ValidationResult {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return invalid(registry.ErrCodeParseError, err.Error())
	}
	root := doc.Root()
	if root == nil || root.Tag != "definitions" {
		return invalid(registry.ErrCodeValidationError, "root element must be definitions")
	}
	return valid
}

func (h *WSDLHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return nil, fmt.Errorf("invalid wsdl document: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "definitions" {
		return nil, fmt.Errorf("not a wsdl document")
	}

	name := opts.CollectionName
	if name == "" {
		name = root.SelectAttrValue("name", "SOAP service")
	}
	endpoint := soapEndpoint(root)

	col := schemas.Collection{Name: name}
	for _, portType := range root.SelectElements("portType") {
		for _, op := range portType.SelectElements("operation") {
			opName := op.SelectAttrValue("name", "")
			if opName == "" {
				continue
			}
			col.Requests = append(col.Requests, schemas.Request{
				Name:     opName,
				Protocol: schemas.ProtocolSOAP,
				Method:   "POST",
				URL:      endpoint,
				Headers: []schemas.Header{
					{Name: "Content-Type", Value: "text/xml; charset=utf-8"},
					{Name: "SOAPAction", Value: opName},
				},
				Body: &schemas.Body{
					Type:    schemas.BodyXML,
					Content: soapEnvelope(opName),
				},
			})
		}
	}
	if len(col.Requests) == 0 {
		return nil, fmt.Errorf("wsdl document declares no operations")
	}

	result := &registry.ParseResult{Collections: []schemas.Collection{col}}
	col.WalkRequests(func(r *schemas.Request) { result.Requests = append(result.Requests, *r) })
	return result, nil
}

// soapEndpoint extracts the first service port address, if declared.
func soapEndpoint(root *etree.Element) string {
	for _, service := range root.SelectElements("service") {
		for _, port := range service.SelectElements("port") {
			for _, address := range port.ChildElements() {
				if address.Tag == "address" {
					if loc := address.SelectAttrValue("location", ""); loc != "" {
						return loc
					}
				}
			}
		}
	}
	return ""
}

func soapEnvelope(operation string) string {
	return fmt.Sprintf(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <%s/>
  </soap:Body>
</soap:Envelope>`, operation)
}

func (h *WSDLHandler) Serialize(registry.ExportInput, registry.SerializeOptions) (string, error) {
	return "", errUnsupported(h.Format())
}
