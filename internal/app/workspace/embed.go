package workspace

import (
	"fmt"
	"strconv"

	"github.com/PabloGalante/brandbot/internal/domain"
)

const DefaultWidgetURL = "https://cdn.brandbot.dev/widget/v1/bundle.js"

const embedTemplate = `<!-- Brandbot chatbot configuration -->
<script>
  window.brandbotConfig = {
    token: %s,
    theme: "light",
    primaryColor: %s,
  };
</script>
<!-- Universal widget loader -->
<script id="brandbot-script" src=%s async defer></script>`

// embedSnippet renders the script tags that bootstrap the deployed widget.
func embedSnippet(token domain.Token, brandColor, widgetURL string) string {
	return fmt.Sprintf(embedTemplate, strconv.Quote(string(token)), strconv.Quote(brandColor), strconv.Quote(widgetURL))
}
