package dashboard

import "html/template"

type pageData struct {
	Identifier string
	Chart      template.HTML
	Live       bool
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Identifier}} · Panel</title>
<style>
:root{--bg:#0f172a;--surface:#1e293b;--border:#334155;--text:#e2e8f0;--text-muted:#64748b;--green:#22c55e;--yellow:#eab308}
*{margin:0;padding:0;box-sizing:border-box}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:var(--bg);color:var(--text);min-height:100vh;display:flex;flex-direction:column;align-items:center;gap:12px;padding:24px}
.hdr{display:flex;align-items:center;gap:10px}
.hdr h1{font-size:16px;font-weight:700;color:#f8fafc}
.hdr .dot{width:8px;height:8px;border-radius:50%;background:var(--yellow)}
.hdr .dot.set{background:var(--green)}
.chart{background:var(--surface);border:1px solid var(--border);border-radius:8px;padding:8px}
.chart iframe{border:0;display:block}
.chart-placeholder{color:var(--text-muted);font-size:13px;padding:24px}
.state{font-size:11px;color:var(--text-muted)}
</style>
</head>
<body>
<div class="hdr"><span class="dot" id="dot"></span><h1>{{.Identifier}}</h1></div>
{{.Chart}}
<div class="state" id="state">style: unset</div>
{{if .Live}}<script>
(function(){
  const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + location.host + location.pathname + '/ws' + location.search);
  ws.onmessage = function(ev){
    const msg = JSON.parse(ev.data);
    if (msg.error) { document.getElementById('state').textContent = msg.error; return; }
    let text = 'style: ' + msg.state;
    if (msg.preset) { text += ' (' + msg.preset.width + '×' + msg.preset.height + ')'; }
    document.getElementById('state').textContent = text;
    document.getElementById('dot').classList.toggle('set', msg.state === 'set');
  };
})();
</script>{{end}}
</body>
</html>
`))
